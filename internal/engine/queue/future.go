package queue

import "context"

// Future is the settled-exactly-once result of a pushed task.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve settles the future. Must be called exactly once.
func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Wait blocks until the task has settled or ctx is done. A ctx error only
// abandons the wait; the task itself keeps running.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel that is closed once the task has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the task has settled without blocking.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
