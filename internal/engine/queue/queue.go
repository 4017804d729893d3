package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAborted is returned by the futures of tasks that were still queued, or
// pushed, after Abort.
var ErrAborted = errors.New("queue aborted")

// Mode selects how pushed tasks are scheduled.
type Mode int

const (
	// Sequential runs one task at a time in FIFO push order. The next task
	// does not start until the previous task's future has settled.
	Sequential Mode = iota

	// Concurrent starts every pushed task immediately.
	Concurrent
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Concurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// Task is one unit of work. The context is the one supplied to Push.
type Task func(ctx context.Context) (any, error)

type pending struct {
	ctx    context.Context
	task   Task
	future *Future
}

// Queue schedules tasks according to its Mode. The zero value is not usable;
// construct with New.
type Queue struct {
	mode Mode

	mu      sync.Mutex
	queued  []pending
	running int
	paused  bool
	aborted bool
	idle    bool
	idleCh  chan struct{} // closed while idle, replaced when work arrives

	listeners  map[int]func()
	nextListen int
}

// Option configures a Queue.
type Option func(*Queue)

// WithMode sets the scheduling mode. The default is Sequential.
func WithMode(m Mode) Option {
	return func(q *Queue) {
		q.mode = m
	}
}

// New creates an idle queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		mode:      Sequential,
		idle:      true,
		idleCh:    make(chan struct{}),
		listeners: make(map[int]func()),
	}
	close(q.idleCh)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Mode returns the queue's scheduling mode.
func (q *Queue) Mode() Mode {
	return q.mode
}

// Push hands a task to the queue and returns its Future. The task receives
// ctx when it runs. If the queue is aborted the future is already rejected
// with ErrAborted.
func (q *Queue) Push(ctx context.Context, task Task) *Future {
	f := newFuture()

	q.mu.Lock()
	if q.aborted {
		q.mu.Unlock()
		f.resolve(nil, ErrAborted)
		return f
	}
	q.queued = append(q.queued, pending{ctx: ctx, task: task, future: f})
	q.leaveIdleLocked()
	q.startLocked()
	q.mu.Unlock()

	return f
}

// Pause stops new tasks from starting. Running tasks finish normally and
// tasks pushed while paused wait for Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume restarts scheduling after Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.startLocked()
	notify := q.maybeIdleLocked()
	q.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// Abort rejects every queued task with ErrAborted and refuses all future
// pushes. Tasks already running finish normally.
func (q *Queue) Abort() {
	q.mu.Lock()
	q.aborted = true
	rejected := q.queued
	q.queued = nil
	notify := q.maybeIdleLocked()
	q.mu.Unlock()

	for _, p := range rejected {
		p.future.resolve(nil, ErrAborted)
	}
	for _, fn := range notify {
		fn()
	}
}

// IsIdle reports whether no task is running and none is queued.
func (q *Queue) IsIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// IsPaused reports whether the queue is paused.
func (q *Queue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// IsAborted reports whether Abort has been called.
func (q *Queue) IsAborted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborted
}

// HasPending reports whether any task is queued and not yet started.
func (q *Queue) HasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued) > 0
}

// Running returns the number of tasks currently executing.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// WaitForIdle blocks until the queue is idle or ctx is done.
func (q *Queue) WaitForIdle(ctx context.Context) error {
	q.mu.Lock()
	ch := q.idleCh
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnIdle registers fn to run each time the queue transitions into idle.
// The returned function removes the listener.
func (q *Queue) OnIdle(fn func()) (remove func()) {
	q.mu.Lock()
	id := q.nextListen
	q.nextListen++
	q.listeners[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// startLocked launches as many queued tasks as the mode and state allow.
func (q *Queue) startLocked() {
	for !q.paused && !q.aborted && len(q.queued) > 0 {
		if q.mode == Sequential && q.running > 0 {
			return
		}
		next := q.queued[0]
		q.queued = q.queued[1:]
		q.running++
		go q.run(next)
	}
}

func (q *Queue) run(p pending) {
	value, err := execute(p.ctx, p.task)

	// Settle before scheduling the next task so sequential consumers
	// observe completion in push order.
	p.future.resolve(value, err)

	q.mu.Lock()
	q.running--
	q.startLocked()
	notify := q.maybeIdleLocked()
	q.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// execute runs the task with panic isolation.
func execute(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	return task(ctx)
}

// leaveIdleLocked marks the queue busy, replacing the idle channel.
func (q *Queue) leaveIdleLocked() {
	if !q.idle {
		return
	}
	q.idle = false
	q.idleCh = make(chan struct{})
}

// maybeIdleLocked transitions into idle when nothing runs and nothing waits.
// It returns the listeners to notify; callers invoke them after unlocking.
// The transition fires listeners exactly once per entry into idle.
func (q *Queue) maybeIdleLocked() []func() {
	if q.idle || q.running > 0 || len(q.queued) > 0 {
		return nil
	}
	q.idle = true
	close(q.idleCh)

	notify := make([]func(), 0, len(q.listeners))
	for _, fn := range q.listeners {
		notify = append(notify, fn)
	}
	return notify
}
