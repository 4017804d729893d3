package controller

import (
	"errors"
	"fmt"
)

// Common errors for controller operations.
var (
	// ErrNoHandler is returned when no handler pair is registered for an
	// edit's type tag.
	ErrNoHandler = errors.New("no handler registered for edit type")

	// ErrDuplicateHandler is returned by Register when the type tag already
	// has a handler pair. Use Reregister to overwrite deliberately.
	ErrDuplicateHandler = errors.New("handler already registered for edit type")

	// ErrDuplicateChild is returned when a child model resolves to a
	// (type, id) pair the controller tree already owns.
	ErrDuplicateChild = errors.New("duplicate child model")
)

// RollbackError reports that a submit failed and the local rollback of the
// optimistic mutation failed as well, leaving the model inconsistent with
// the remote store.
type RollbackError struct {
	// Submit is the error that triggered the rollback, if the submit
	// handler rejected rather than reporting failure.
	Submit error

	// Err is the rollback failure itself.
	Err error
}

// Error implements the error interface.
func (e *RollbackError) Error() string {
	if e.Submit != nil {
		return fmt.Sprintf("rollback failed after submit error (%v): %v", e.Submit, e.Err)
	}
	return fmt.Sprintf("rollback failed after reported submit failure: %v", e.Err)
}

// Unwrap returns the rollback failure.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
