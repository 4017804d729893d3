package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
)

// fakePublisher mimics a channel publisher: one reverse per edit, in
// reverse order relative to the input.
type fakePublisher struct {
	mu        sync.Mutex
	published [][]edit.Operation
	delay     time.Duration
	err       error
	fail      bool
	onPublish func()
	inFlight  int
	peak      int
}

func (p *fakePublisher) Publish(ctx context.Context, edits ...edit.Operation) (edit.Result, error) {
	p.mu.Lock()
	p.published = append(p.published, edits)
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	hook := p.onPublish
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if hook != nil {
		hook()
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return edit.Result{}, p.err
	}
	if p.fail {
		return edit.Result{Success: false, Err: errors.New("submit failed")}, nil
	}

	reverses := make([]edit.Operation, len(edits))
	for i, op := range edits {
		reverses[len(edits)-1-i] = edit.MustNew("reverse-"+op.Type, nil)
	}
	return edit.Result{Success: true, Edits: edits, Reverses: reverses}, nil
}

func (p *fakePublisher) publishCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type publisherFunc func(ctx context.Context, edits ...edit.Operation) (edit.Result, error)

func (f publisherFunc) Publish(ctx context.Context, edits ...edit.Operation) (edit.Result, error) {
	return f(ctx, edits...)
}

func reverses(types ...string) []edit.Operation {
	ops := make([]edit.Operation, len(types))
	for i, t := range types {
		ops[i] = edit.MustNew(t, nil)
	}
	return ops
}

func TestPushAssignsCheckpoints(t *testing.T) {
	h := New(&fakePublisher{})

	if !h.Push(reverses("undo-e1"), nil) {
		t.Fatal("push refused")
	}
	if !h.Push(reverses("undo-e2"), nil) {
		t.Fatal("push refused")
	}

	cp, ok := h.Checkpoint()
	if !ok {
		t.Fatal("checkpoint should exist")
	}
	if cp != 2 {
		t.Errorf("checkpoint = %d, want 2", cp)
	}
}

func TestPushEmptyRefused(t *testing.T) {
	h := New(&fakePublisher{})
	if h.Push(nil, nil) {
		t.Error("pushing no edits should be refused")
	}
}

func TestUndoRedoCheckpointProgression(t *testing.T) {
	h := New(&fakePublisher{})
	ctx := context.Background()

	h.Push(reverses("undo-e1"), nil)
	h.Push(reverses("undo-e2"), nil)

	res, err := h.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if res == nil || !res.Success {
		t.Fatalf("undo result = %+v, want success", res)
	}
	if res.Checkpoint != 2 {
		t.Errorf("undo checkpoint = %d, want 2", res.Checkpoint)
	}
	if cp, ok := h.Checkpoint(); !ok || cp != 1 {
		t.Errorf("checkpoint after one undo = %d (%v), want 1", cp, ok)
	}

	if _, err := h.Undo(ctx); err != nil {
		t.Fatalf("second Undo failed: %v", err)
	}
	if _, ok := h.Checkpoint(); ok {
		t.Error("checkpoint should be absent after undoing everything")
	}

	redo, err := h.Redo(ctx)
	if err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	if redo == nil || redo.Checkpoint != 1 {
		t.Fatalf("redo result = %+v, want checkpoint 1", redo)
	}
	if cp, ok := h.Checkpoint(); !ok || cp != 1 {
		t.Errorf("checkpoint after redo = %d (%v), want 1", cp, ok)
	}
}

func TestUndoEmptyStack(t *testing.T) {
	p := &fakePublisher{}
	h := New(p)

	res, err := h.Undo(context.Background())
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil for empty stack", res)
	}
	if p.publishCount() != 0 {
		t.Error("nothing should be published for an empty stack")
	}
	if h.IsUndo() {
		t.Error("empty undo must not enter the busy state")
	}
}

func TestUndoSerialization(t *testing.T) {
	p := &fakePublisher{delay: 20 * time.Millisecond}
	h := New(p)
	ctx := context.Background()

	h.Push(reverses("undo-e1"), nil)
	h.Push(reverses("undo-e2"), nil)

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.Undo(ctx)
			if err != nil {
				t.Errorf("Undo %d failed: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	// Both undos completed, against different checkpoints, in sequence.
	var checkpoints []uint64
	for _, res := range results {
		if res == nil {
			t.Fatal("both undos should find an item")
		}
		checkpoints = append(checkpoints, res.Checkpoint)
	}
	if checkpoints[0] == checkpoints[1] {
		t.Errorf("both undos reverted checkpoint %d", checkpoints[0])
	}
	if h.RedoCount() != 2 {
		t.Errorf("redo count = %d, want 2", h.RedoCount())
	}

	p.mu.Lock()
	peak := p.peak
	p.mu.Unlock()
	if peak != 1 {
		t.Errorf("peak concurrent stack operations = %d, want 1", peak)
	}
}

func TestRedoBranchInvalidation(t *testing.T) {
	h := New(&fakePublisher{})
	ctx := context.Background()

	h.Push(reverses("undo-e1"), nil)
	if _, err := h.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	if !h.CanRedo() {
		t.Fatal("redo should be available after undo")
	}

	// A brand-new edit invalidates the redo branch.
	h.Push(reverses("undo-e2"), nil)
	if h.CanRedo() {
		t.Error("redo stack should be cleared by a new push")
	}
}

func TestPushRefusedDuringUndo(t *testing.T) {
	p := &fakePublisher{}
	h := New(p)

	refused := make(chan bool, 1)
	p.onPublish = func() {
		// Mid-undo: a push from an observer must be refused.
		refused <- !h.Push(reverses("undo-from-observer"), nil)
	}

	h.Push(reverses("undo-e1"), nil)
	if _, err := h.Undo(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !<-refused {
		t.Error("push during undo should return false")
	}
	// The refused push left no trace; only the transferred redo item exists.
	if h.UndoCount() != 0 {
		t.Errorf("undo count = %d, want 0", h.UndoCount())
	}
	if h.RedoCount() != 1 {
		t.Errorf("redo count = %d, want 1", h.RedoCount())
	}
}

func TestUndoFailureRestoresItem(t *testing.T) {
	p := &fakePublisher{err: errors.New("dispatch failed")}
	h := New(p)
	ctx := context.Background()

	h.Push(reverses("undo-e1"), nil)

	res, err := h.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo itself should resolve: %v", err)
	}
	if res == nil || res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.Err == nil {
		t.Error("result should carry the publish error")
	}

	// The item is back on the undo stack for retry.
	if cp, ok := h.Checkpoint(); !ok || cp != 1 {
		t.Errorf("checkpoint = %d (%v), want 1 restored", cp, ok)
	}
	if h.CanRedo() {
		t.Error("failed undo must not populate the redo stack")
	}

	// Retry succeeds once the publisher recovers.
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	res, err = h.Undo(ctx)
	if err != nil || res == nil || !res.Success {
		t.Fatalf("retry = %+v, %v, want success", res, err)
	}
}

func TestReportedFailureRestoresItem(t *testing.T) {
	p := &fakePublisher{fail: true}
	h := New(p)

	h.Push(reverses("undo-e1"), nil)
	res, err := h.Undo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Success {
		t.Fatalf("result = %+v, want reported failure", res)
	}
	if !h.CanUndo() {
		t.Error("item should be restored after reported failure")
	}
}

func TestPartialBatchFailureRestoresWholeItem(t *testing.T) {
	var mu sync.Mutex
	var applied []string
	calls := 0
	p := publisherFunc(func(ctx context.Context, edits ...edit.Operation) (edit.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			// The first reverse lands before the batch is refused.
			applied = append(applied, edits[0].Type)
			return edit.Result{Success: false, Err: errors.New("refused")}, nil
		}
		revs := make([]edit.Operation, len(edits))
		for i, op := range edits {
			applied = append(applied, op.Type)
			revs[len(edits)-1-i] = edit.MustNew("reverse-"+op.Type, nil)
		}
		return edit.Result{Success: true, Edits: edits, Reverses: revs}, nil
	})

	h := New(p)
	ctx := context.Background()
	h.Push(reverses("unset-a", "unset-b"), nil)

	res, err := h.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo itself should resolve: %v", err)
	}
	if res == nil || res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}

	// The item goes back whole, first reverse included, so the retry
	// republishes the full batch.
	if cp, ok := h.Checkpoint(); !ok || cp != 1 {
		t.Errorf("checkpoint = %d (%v), want 1 restored", cp, ok)
	}

	res, err = h.Undo(ctx)
	if err != nil || res == nil || !res.Success {
		t.Fatalf("retry = %+v, %v, want success", res, err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"unset-a", "unset-a", "unset-b"}
	if len(applied) != len(want) {
		t.Fatalf("applied %v, want %v", applied, want)
	}
	for i := range want {
		if applied[i] != want[i] {
			t.Errorf("applied[%d] = %q, want %q", i, applied[i], want[i])
		}
	}
}

func TestStackBound(t *testing.T) {
	h := New(&fakePublisher{}, WithLimit(3))

	for i := 1; i <= 5; i++ {
		h.Push(reverses(fmt.Sprintf("undo-e%d", i)), nil)
	}

	if h.UndoCount() != 3 {
		t.Fatalf("undo count = %d, want 3", h.UndoCount())
	}
	// The newest entries survive; eviction is oldest first.
	if cp, _ := h.Checkpoint(); cp != 5 {
		t.Errorf("top checkpoint = %d, want 5", cp)
	}

	ctx := context.Background()
	seen := 0
	for h.CanUndo() {
		if _, err := h.Undo(ctx); err != nil {
			t.Fatal(err)
		}
		seen++
	}
	if seen != 3 {
		t.Errorf("traversed %d items, want 3 (evicted items never observed)", seen)
	}
}

func TestUndoRedoAlternation(t *testing.T) {
	h := New(&fakePublisher{})
	ctx := context.Background()

	h.Push(reverses("undo-e1"), nil)

	// Alternate until a new push breaks the cycle; the checkpoint is stable
	// throughout.
	for i := 0; i < 3; i++ {
		res, err := h.Undo(ctx)
		if err != nil || res == nil || !res.Success {
			t.Fatalf("undo %d = %+v, %v", i, res, err)
		}
		if res.Checkpoint != 1 {
			t.Errorf("undo %d checkpoint = %d, want 1", i, res.Checkpoint)
		}

		res, err = h.Redo(ctx)
		if err != nil || res == nil || !res.Success {
			t.Fatalf("redo %d = %+v, %v", i, res, err)
		}
		if res.Checkpoint != 1 {
			t.Errorf("redo %d checkpoint = %d, want 1", i, res.Checkpoint)
		}
	}
}

func TestOnUndoListener(t *testing.T) {
	h := New(&fakePublisher{})
	ctx := context.Background()

	var mu sync.Mutex
	var undos, redos []Result
	removeUndo := h.OnUndo(func(res Result) {
		mu.Lock()
		undos = append(undos, res)
		mu.Unlock()
	})
	h.OnRedo(func(res Result) {
		mu.Lock()
		redos = append(redos, res)
		mu.Unlock()
	})

	h.Push(reverses("undo-e1"), nil)
	if _, err := h.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Redo(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	if len(undos) != 1 || len(redos) != 1 {
		t.Fatalf("listeners saw %d undos and %d redos, want 1 and 1", len(undos), len(redos))
	}
	mu.Unlock()

	removeUndo()
	h.Push(reverses("undo-e2"), nil)
	if _, err := h.Undo(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(undos) != 1 {
		t.Errorf("removed listener saw %d undos, want 1", len(undos))
	}
}

func TestClear(t *testing.T) {
	h := New(&fakePublisher{})
	h.Push(reverses("undo-e1"), nil)
	h.Push(reverses("undo-e2"), nil)

	h.Clear()
	if h.CanUndo() || h.CanRedo() {
		t.Error("cleared history should have no items")
	}

	// Checkpoints continue from where they left off.
	h.Push(reverses("undo-e3"), nil)
	if cp, _ := h.Checkpoint(); cp != 3 {
		t.Errorf("checkpoint = %d, want 3", cp)
	}
}
