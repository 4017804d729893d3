package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jjvainav/sprig-sub001/internal/engine/controller"
	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
)

// memoryStore is an in-memory stand-in for the authoritative remote side.
// It keeps its own copy of each document, assigns revisions, and retains
// the edit log so clients can catch up from any revision.
type memoryStore struct {
	mu   sync.Mutex
	docs map[string]*storedDoc
}

type storedDoc struct {
	revision uint64
	fields   map[string]string
	log      []edit.Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string]*storedDoc)}
}

func (s *memoryStore) doc(id string) *storedDoc {
	d, ok := s.docs[id]
	if !ok {
		d = &storedDoc{revision: 1, fields: make(map[string]string)}
		s.docs[id] = d
	}
	return d
}

// Submit confirms one edit, assigns it the next revision, and returns both
// the revision and the reverse edit restoring the previous value.
func (s *memoryStore) Submit(ctx context.Context, id string, op edit.Operation) (uint64, edit.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	field := op.Get("field").String()
	if field == "" {
		return 0, edit.Operation{}, fmt.Errorf("edit %s names no field", op.Type)
	}

	d := s.doc(id)
	prev := d.fields[field]
	d.fields[field] = op.Get("value").String()
	d.revision++
	d.log = append(d.log, edit.Record{Edit: op, Revision: d.revision, Timestamp: time.Now()})

	reverse := edit.MustNew(op.Type, map[string]string{"field": field, "value": prev})
	return d.revision, reverse, nil
}

// Dispatch implements channel.Dispatcher: remote actors write through the
// channel and receive the reverse edit as the authoritative outcome.
func (s *memoryStore) Dispatch(ctx context.Context, op edit.Operation) (edit.Operation, error) {
	id := op.Get("doc").String()
	if id == "" {
		return edit.Operation{}, fmt.Errorf("edit %s names no doc", op.Type)
	}
	_, reverse, err := s.Submit(ctx, id, op)
	return reverse, err
}

// FetchEdits implements syncer.Provider.
func (s *memoryStore) FetchEdits(ctx context.Context, modelType, modelID string, start uint64) ([]edit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.doc(modelID)
	var records []edit.Record
	for _, rec := range d.log {
		if rec.Revision >= start {
			records = append(records, rec)
		}
	}
	return records, nil
}

// submitHandler adapts the store to a controller submit handler.
func (s *memoryStore) submitHandler(id string) controller.SubmitHandler {
	return func(ctx context.Context, m controller.Model, op edit.Operation) (controller.SubmitResult, error) {
		revision, _, err := s.Submit(ctx, id, op)
		if err != nil {
			return controller.SubmitResult{}, err
		}
		return controller.Submitted(op, revision), nil
	}
}
