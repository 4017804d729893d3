package syncer

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
)

// Provider fetches authoritative edits for one model starting at a revision,
// in ascending, contiguous revision order.
type Provider interface {
	FetchEdits(ctx context.Context, modelType, modelID string, start uint64) ([]edit.Record, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, modelType, modelID string, start uint64) ([]edit.Record, error)

// FetchEdits calls f.
func (f ProviderFunc) FetchEdits(ctx context.Context, modelType, modelID string, start uint64) ([]edit.Record, error) {
	return f(ctx, modelType, modelID, start)
}

// Target is the local side of a synchronization: the model's identity and
// revision plus the remote-apply entry point. *controller.Controller
// satisfies this interface.
type Target interface {
	ModelID() string
	ModelType() string
	Revision() uint64
	ApplyRemote(ctx context.Context, op edit.Operation, revision uint64) error
}

// syncKey is the singleflight key; a syncer serves exactly one target.
const syncKey = "synchronize"

// Syncer catches a target up with the edits it is missing.
type Syncer struct {
	target   Target
	provider Provider
	group    singleflight.Group
}

// New creates a syncer for the target.
func New(target Target, provider Provider) *Syncer {
	return &Syncer{target: target, provider: provider}
}

// Synchronize fetches and applies every edit the target is missing. Calls
// made while a pass is in flight share that pass's outcome instead of
// starting a second one.
func (s *Syncer) Synchronize(ctx context.Context) error {
	// The pass is detached from the initiating caller so its cancellation
	// cannot fail the callers that joined the flight.
	passCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(syncKey, func() (any, error) {
		return nil, s.pass(passCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		// The shared pass keeps running for the other callers.
		return ctx.Err()
	}
}

// pass runs fetch cycles until one completes against a stable revision.
func (s *Syncer) pass(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := s.target.Revision()
		records, err := s.provider.FetchEdits(ctx, s.target.ModelType(), s.target.ModelID(), start+1)
		if err != nil {
			return fmt.Errorf("fetching edits after revision %d: %w", start, err)
		}

		// A submit completed while the fetch was in flight; the batch is
		// stale. Discard it and run the cycle again.
		if s.target.Revision() != start {
			continue
		}

		for _, rec := range records {
			if err := s.target.ApplyRemote(ctx, rec.Edit, rec.Revision); err != nil {
				return fmt.Errorf("replaying %s at revision %d: %w", rec.Edit.Type, rec.Revision, err)
			}
		}
		return nil
	}
}
