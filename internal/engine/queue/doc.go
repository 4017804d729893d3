// Package queue provides the serialized task queue that the rest of the
// engine uses to enforce ordering.
//
// A Queue executes asynchronous units of work in one of two modes. In
// sequential mode exactly one task runs at a time and later pushes wait in
// FIFO order until the running task's future has settled. In concurrent mode
// every pushed task starts immediately and the queue only tracks completion
// for its idle and pause semantics.
//
// Pausing stops new tasks from starting while letting running tasks finish;
// aborting additionally rejects everything still queued and refuses future
// pushes. A task failure is isolated to that task's Future and never affects
// its siblings or the queue state.
package queue
