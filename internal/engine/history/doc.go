// Package history implements the undo/redo ledger of reverse edits.
//
// A Stack holds two bounded sequences of checkpointed items; pushing a new
// item always clears the redo side, so the history never branches. History
// wraps a stack with the outgoing publisher used to republish reverse edits
// and serializes undo/redo requests through a dedicated sequential queue, so
// rapid repeated invocation queues deterministically instead of racing.
//
// Reverse edits produced by an undo or redo re-enter the stack through the
// internal transfer path only; the public Push refuses pushes while an
// operation is executing, so those reverses are never mistaken for new user
// edits.
package history
