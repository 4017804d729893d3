// Package channel provides the per-target publish/dispatch/observe hub.
//
// A Channel binds publishers and observers to one Dispatcher, the external
// asynchronous authority that decides each edit's outcome and returns its
// reverse. Publishers hand edits to the dispatcher and resolve with an
// edit.Result; observers are notified of every result flowing through the
// channel, independently of one another.
//
// The channel itself never serializes concurrent publishers. Callers that
// need ordering (undo/redo, per-model submission) serialize through a
// queue.Queue.
package channel
