package history

import (
	"sync"

	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
)

// DefaultLimit is the undo stack bound when none is configured.
const DefaultLimit = 50

// Item is one entry of the undo or redo stack. Checkpoint is a monotonically
// increasing local sequence number assigned at push time, independent of the
// model revision; it correlates an undo or redo completion with the edit
// that was reverted. State carries optional opaque caller data along with
// the item as it moves between the stacks.
type Item struct {
	Checkpoint uint64
	Edits      []edit.Operation
	State      any
}

// Stack holds the bounded undo and redo sequences. When the undo side
// exceeds its limit the oldest entries are evicted; the redo side is only
// ever populated by undo transfers and cannot outgrow the limit.
type Stack struct {
	mu    sync.Mutex
	limit int
	next  uint64
	undo  []Item
	redo  []Item
}

// NewStack creates an empty stack bounded at limit entries per side.
// A non-positive limit selects DefaultLimit.
func NewStack(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{limit: limit}
}

// Push assigns the next checkpoint to the edits, pushes them onto the undo
// side, and clears the redo side. It returns the stored item.
func (s *Stack) Push(edits []edit.Operation, state any) Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	item := Item{Checkpoint: s.next, Edits: edits, State: state}
	s.undo = append(s.undo, item)
	s.redo = nil

	if len(s.undo) > s.limit {
		excess := len(s.undo) - s.limit
		s.undo = s.undo[excess:]
	}
	return item
}

// PopUndo removes and returns the top undo item.
func (s *Stack) PopUndo() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return Item{}, false
	}
	item := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return item, true
}

// PopRedo removes and returns the top redo item.
func (s *Stack) PopRedo() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redo) == 0 {
		return Item{}, false
	}
	item := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	return item, true
}

// TransferToUndo pushes an item onto the undo side keeping its checkpoint.
// Used by redo completion and by undo failure restoration; it does not clear
// the redo side.
func (s *Stack) TransferToUndo(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.undo = append(s.undo, item)
	if len(s.undo) > s.limit {
		excess := len(s.undo) - s.limit
		s.undo = s.undo[excess:]
	}
}

// TransferToRedo pushes an item onto the redo side keeping its checkpoint.
func (s *Stack) TransferToRedo(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redo = append(s.redo, item)
}

// Checkpoint returns the checkpoint of the top undo item, the most recent
// change that can still be undone. The second return is false when the undo
// side is empty.
func (s *Stack) Checkpoint() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return 0, false
	}
	return s.undo[len(s.undo)-1].Checkpoint, true
}

// CanUndo reports whether an undo item is available.
func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// CanRedo reports whether a redo item is available.
func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// UndoLen returns the number of undo items.
func (s *Stack) UndoLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

// RedoLen returns the number of redo items.
func (s *Stack) RedoLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo)
}

// Limit returns the per-side bound.
func (s *Stack) Limit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// SetLimit changes the bound. If the undo side is larger, the oldest
// entries are evicted immediately.
func (s *Stack) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	if len(s.undo) > limit {
		excess := len(s.undo) - limit
		s.undo = s.undo[excess:]
	}
}

// Clear removes every item from both sides. The checkpoint counter is not
// reset, so later pushes still receive fresh checkpoints.
func (s *Stack) Clear() {
	s.mu.Lock()
	s.undo = nil
	s.redo = nil
	s.mu.Unlock()
}
