package controller

import "sync"

// Model is the mutable aggregate a controller owns. The controller is the
// only component that mutates a model; revisions only move through submit
// reconciliation, remote apply, or an explicit reset by the integrator.
type Model interface {
	// ModelID returns the model's unique identifier within its type.
	ModelID() string

	// ModelType returns the model's type name.
	ModelType() string

	// Revision returns the current authoritative revision, starting at the
	// value supplied at construction.
	Revision() uint64

	// SetRevision replaces the revision.
	SetRevision(rev uint64)
}

// Base is an embeddable Model implementation. Concrete models embed Base and
// add their own mutable state.
type Base struct {
	id        string
	modelType string

	mu       sync.Mutex
	revision uint64
}

// NewBase creates a model base. A zero revision is promoted to 1, the lowest
// valid revision.
func NewBase(modelType, id string, revision uint64) *Base {
	if revision == 0 {
		revision = 1
	}
	return &Base{id: id, modelType: modelType, revision: revision}
}

// ModelID returns the model identifier.
func (b *Base) ModelID() string {
	return b.id
}

// ModelType returns the model type name.
func (b *Base) ModelType() string {
	return b.modelType
}

// Revision returns the current revision.
func (b *Base) Revision() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revision
}

// SetRevision replaces the revision.
func (b *Base) SetRevision(rev uint64) {
	b.mu.Lock()
	b.revision = rev
	b.mu.Unlock()
}
