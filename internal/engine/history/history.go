package history

import (
	"context"
	"sync"

	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
	"github.com/jjvainav/sprig-sub001/internal/engine/queue"
)

// State is the history's operation state machine.
type State int

const (
	// Idle means no stack operation is executing.
	Idle State = iota
	// Undoing means an undo operation is executing.
	Undoing
	// Redoing means a redo operation is executing.
	Redoing
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Undoing:
		return "undoing"
	case Redoing:
		return "redoing"
	default:
		return "unknown"
	}
}

// Publisher is the outgoing side of the channel used to republish reverse
// edits. *channel.Publisher satisfies this interface; so does any adapter
// that routes edits back through a controller.
type Publisher interface {
	Publish(ctx context.Context, edits ...edit.Operation) (edit.Result, error)
}

// Result correlates a completed undo or redo with the checkpoint of the
// item that was reverted.
type Result struct {
	Checkpoint uint64
	Success    bool
	Err        error
}

// History is the undo/redo ledger for one model tree. Undo and redo
// requests are serialized through a dedicated sequential queue; at most one
// stack operation executes at any instant.
type History struct {
	stack     *Stack
	queue     *queue.Queue
	publisher Publisher

	mu    sync.Mutex
	state State

	listeners map[int]listener
	nextID    int
}

type listener struct {
	state State
	fn    func(Result)
}

// Option configures a History.
type Option func(*History)

// WithLimit bounds the undo stack. A non-positive limit selects
// DefaultLimit.
func WithLimit(limit int) Option {
	return func(h *History) {
		h.stack = NewStack(limit)
	}
}

// New creates a history that republishes reverse edits through p.
func New(p Publisher, opts ...Option) *History {
	h := &History{
		stack:     NewStack(0),
		queue:     queue.New(),
		publisher: p,
		listeners: make(map[int]listener),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Push records the reverse edits of a new user edit and clears the redo
// stack. It is refused (returns false, no-op) while an undo or redo is
// executing, so reverse edits generated by a stack operation re-enter the
// stack only through the internal transfer path.
func (h *History) Push(reverses []edit.Operation, state any) bool {
	if len(reverses) == 0 {
		return false
	}

	h.mu.Lock()
	busy := h.state != Idle
	h.mu.Unlock()
	if busy {
		return false
	}

	h.stack.Push(reverses, state)
	return true
}

// Pop removes and returns the top undo item without publishing it.
func (h *History) Pop() (Item, bool) {
	return h.stack.PopUndo()
}

// Undo reverts the most recent recorded edit by republishing its reverse
// edits, and moves the resulting reverses to the redo stack under the same
// checkpoint. A nil result means the undo stack was empty.
func (h *History) Undo(ctx context.Context) (*Result, error) {
	return h.run(ctx, Undoing)
}

// Redo re-applies the most recently undone edit. A nil result means the
// redo stack was empty.
func (h *History) Redo(ctx context.Context) (*Result, error) {
	return h.run(ctx, Redoing)
}

// run queues one stack operation. Overlapping calls execute strictly one at
// a time in call order.
func (h *History) run(ctx context.Context, op State) (*Result, error) {
	future := h.queue.Push(ctx, func(ctx context.Context) (any, error) {
		return h.execute(ctx, op), nil
	})

	value, err := future.Wait(context.Background())
	if err != nil {
		return nil, err
	}
	res, _ := value.(*Result)
	return res, nil
}

// execute performs one stack operation. Returns nil when the source stack
// is empty; the busy state is never entered in that case.
func (h *History) execute(ctx context.Context, op State) *Result {
	var item Item
	var ok bool
	if op == Undoing {
		item, ok = h.stack.PopUndo()
	} else {
		item, ok = h.stack.PopRedo()
	}
	if !ok {
		return nil
	}

	h.setState(op)
	defer h.setState(Idle)

	published, err := h.publisher.Publish(ctx, item.Edits...)
	if err != nil || !published.Success {
		// Restore the popped item so the failed operation can be retried.
		if op == Undoing {
			h.stack.TransferToUndo(item)
		} else {
			h.stack.TransferToRedo(item)
		}
		if err == nil {
			err = published.Err
		}
		res := &Result{Checkpoint: item.Checkpoint, Err: err}
		h.notify(op, *res)
		return res
	}

	transferred := Item{
		Checkpoint: item.Checkpoint,
		Edits:      published.Reverses,
		State:      item.State,
	}
	if op == Undoing {
		h.stack.TransferToRedo(transferred)
	} else {
		h.stack.TransferToUndo(transferred)
	}

	res := &Result{Checkpoint: item.Checkpoint, Success: true}
	h.notify(op, *res)
	return res
}

// CanUndo reports whether an undo item is available.
func (h *History) CanUndo() bool {
	return h.stack.CanUndo()
}

// CanRedo reports whether a redo item is available.
func (h *History) CanRedo() bool {
	return h.stack.CanRedo()
}

// Checkpoint returns the checkpoint of the most recent change that can
// still be undone; false when the undo stack is empty.
func (h *History) Checkpoint() (uint64, bool) {
	return h.stack.Checkpoint()
}

// IsUndo reports whether an undo operation is executing right now.
func (h *History) IsUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == Undoing
}

// IsRedo reports whether a redo operation is executing right now.
func (h *History) IsRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == Redoing
}

// UndoCount returns the number of undo items.
func (h *History) UndoCount() int {
	return h.stack.UndoLen()
}

// RedoCount returns the number of redo items.
func (h *History) RedoCount() int {
	return h.stack.RedoLen()
}

// Clear removes all undo/redo items.
func (h *History) Clear() {
	h.stack.Clear()
}

// SetLimit changes the undo stack bound, evicting oldest entries if needed.
func (h *History) SetLimit(limit int) {
	h.stack.SetLimit(limit)
}

// OnUndo registers fn to run after each completed undo operation. The
// returned function removes the listener.
func (h *History) OnUndo(fn func(Result)) (remove func()) {
	return h.listen(Undoing, fn)
}

// OnRedo registers fn to run after each completed redo operation.
func (h *History) OnRedo(fn func(Result)) (remove func()) {
	return h.listen(Redoing, fn)
}

func (h *History) listen(state State, fn func(Result)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = listener{state: state, fn: fn}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *History) notify(state State, res Result) {
	h.mu.Lock()
	fns := make([]func(Result), 0, len(h.listeners))
	for _, l := range h.listeners {
		if l.state == state {
			fns = append(fns, l.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(res)
	}
}

func (h *History) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}
