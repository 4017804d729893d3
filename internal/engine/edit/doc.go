// Package edit defines the value types exchanged throughout the
// synchronization engine: edit operations, dispatch results, and the
// edit records returned by remote providers.
//
// An Operation is an immutable {type, data} pair. The engine routes on the
// type tag and never interprets the data payload; callers that need to read
// or derive payload fields use the gjson-path accessors on Operation.
package edit
