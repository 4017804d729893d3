package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
	"github.com/jjvainav/sprig-sub001/internal/engine/queue"
)

// ApplyResult is the outcome of the local apply phase. Reverses holds the
// edits that undo the mutation, most recent first when there is more than
// one.
type ApplyResult struct {
	Success  bool
	Edit     edit.Operation
	Reverses []edit.Operation
	Err      error
}

// Applied builds a successful ApplyResult.
func Applied(op edit.Operation, reverses ...edit.Operation) ApplyResult {
	return ApplyResult{Success: true, Edit: op, Reverses: reverses}
}

// ApplyFailed builds a reported apply failure.
func ApplyFailed(op edit.Operation, err error) ApplyResult {
	return ApplyResult{Edit: op, Err: err}
}

// SubmitResult is the outcome of the remote submit phase. Revision is the
// value the authoritative side assigned. KeepRevision leaves the model
// revision untouched on success for edits whose confirmation does not move
// the model forward.
type SubmitResult struct {
	Success      bool
	Edit         edit.Operation
	Revision     uint64
	KeepRevision bool
	Err          error
}

// Submitted builds a successful SubmitResult.
func Submitted(op edit.Operation, revision uint64) SubmitResult {
	return SubmitResult{Success: true, Edit: op, Revision: revision}
}

// SubmitFailed builds a reported submit failure.
func SubmitFailed(op edit.Operation, err error) SubmitResult {
	return SubmitResult{Edit: op, Err: err}
}

// ApplyHandler mutates the model for one edit type and returns the reverse
// edits. It may perform IO (for example resolving related data before
// attaching a child model); an error is treated as an apply failure and the
// edit never reaches the remote side.
type ApplyHandler func(ctx context.Context, m Model, op edit.Operation) (ApplyResult, error)

// SubmitHandler confirms one locally-applied edit with the remote
// collaborator.
type SubmitHandler func(ctx context.Context, m Model, op edit.Operation) (SubmitResult, error)

// Recorder receives the reverse edits of successfully submitted edits.
// It may refuse the push, in which case the reverses are discarded.
// *history.History satisfies this interface.
type Recorder interface {
	Push(reverses []edit.Operation, state any) bool
}

// ChildResolver locates a child model of the controller's aggregate by
// (model type, model id). It returns false when the pair names no child.
type ChildResolver func(modelType, modelID string) (Model, bool)

// ChildFactory builds the controller for a resolved child model.
type ChildFactory func(m Model) *Controller

// Result is the outcome of one PublishEdit call.
type Result struct {
	Success  bool
	Edit     edit.Operation
	Reverses []edit.Operation
	Revision uint64
	Err      error
}

type handlerPair struct {
	apply  ApplyHandler
	submit SubmitHandler
}

type childKey struct {
	modelType string
	modelID   string
}

// Controller owns one model and drives the optimistic apply, submit, and
// rollback workflow for it.
type Controller struct {
	model Model
	queue *queue.Queue

	mu       sync.Mutex
	handlers map[string]handlerPair
	children map[childKey]*Controller
	recorder Recorder
	resolver ChildResolver
	factory  ChildFactory
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder sets the recorder that receives reverse edits on submit
// success.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithChildren configures lazy child-controller creation. resolve locates
// child models; factory builds their controllers and may be nil, in which
// case children are plain controllers inheriting the parent's recorder.
func WithChildren(resolve ChildResolver, factory ChildFactory) Option {
	return func(c *Controller) {
		c.resolver = resolve
		c.factory = factory
	}
}

// New creates a controller owning m. Each controller runs its submits on its
// own sequential queue, so edits for one model are strictly ordered while
// sibling controllers submit concurrently.
func New(m Model, opts ...Option) *Controller {
	c := &Controller{
		model:    m,
		queue:    queue.New(),
		handlers: make(map[string]handlerPair),
		children: make(map[childKey]*Controller),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the owned model.
func (c *Controller) Model() Model {
	return c.model
}

// ModelID returns the owned model's identifier.
func (c *Controller) ModelID() string {
	return c.model.ModelID()
}

// ModelType returns the owned model's type name.
func (c *Controller) ModelType() string {
	return c.model.ModelType()
}

// Revision returns the owned model's revision.
func (c *Controller) Revision() uint64 {
	return c.model.Revision()
}

// Queue returns the controller's submit queue.
func (c *Controller) Queue() *queue.Queue {
	return c.queue
}

// SetRecorder replaces the recorder. Used when the recorder is constructed
// after the controller, as with a history that republishes through it.
func (c *Controller) SetRecorder(r Recorder) {
	c.mu.Lock()
	c.recorder = r
	c.mu.Unlock()
}

// Register binds the handler pair for one edit type. Registering a type
// twice is an error; use Reregister to overwrite deliberately.
func (c *Controller) Register(editType string, apply ApplyHandler, submit SubmitHandler) error {
	if editType == "" {
		return fmt.Errorf("edit type must not be empty")
	}
	if apply == nil || submit == nil {
		return fmt.Errorf("handlers for %s must not be nil", editType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[editType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, editType)
	}
	c.handlers[editType] = handlerPair{apply: apply, submit: submit}
	return nil
}

// Reregister binds the handler pair for one edit type, replacing any
// existing registration.
func (c *Controller) Reregister(editType string, apply ApplyHandler, submit SubmitHandler) {
	c.mu.Lock()
	c.handlers[editType] = handlerPair{apply: apply, submit: submit}
	c.mu.Unlock()
}

// Registered reports whether a handler pair exists for the edit type.
func (c *Controller) Registered(editType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[editType]
	return ok
}

// PublishEdit runs the optimistic workflow for one edit: apply locally,
// submit through the sequential queue, then reconcile. On submit failure the
// local mutation is rolled back with the reverse edits and the result
// reports failure; the model revision is only advanced on success.
//
// The returned error is non-nil when a handler rejected or the rollback
// itself failed; a reported failure resolves with Success false and a nil
// error.
func (c *Controller) PublishEdit(ctx context.Context, op edit.Operation) (Result, error) {
	pair, ok := c.handlerFor(op.Type)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoHandler, op.Type)
		return Result{Edit: op, Err: err}, err
	}

	applied, err := pair.apply(ctx, c.model, op)
	if err != nil {
		return Result{Edit: op, Err: err}, err
	}
	if !applied.Success {
		return Result{Edit: op, Err: applied.Err}, nil
	}

	future := c.queue.Push(ctx, func(ctx context.Context) (any, error) {
		return pair.submit(ctx, c.model, op)
	})

	// The submit runs to completion even if ctx is cancelled mid-flight;
	// cancellation reaches the handler through the task context instead.
	value, err := future.Wait(context.Background())
	submitted, _ := value.(SubmitResult)

	if err != nil || !submitted.Success {
		if rbErr := c.rollback(ctx, applied.Reverses); rbErr != nil {
			rb := &RollbackError{Submit: err, Err: rbErr}
			return Result{Edit: op, Err: rb}, rb
		}
		if err != nil {
			return Result{Edit: op, Err: err}, err
		}
		return Result{Edit: op, Err: submitted.Err}, nil
	}

	if !submitted.KeepRevision && submitted.Revision > 0 {
		c.model.SetRevision(submitted.Revision)
	}
	if rec := c.currentRecorder(); rec != nil && len(applied.Reverses) > 0 {
		rec.Push(applied.Reverses, nil)
	}

	return Result{
		Success:  true,
		Edit:     op,
		Reverses: applied.Reverses,
		Revision: c.model.Revision(),
	}, nil
}

// ApplyRemote applies an edit the authoritative side already confirmed,
// without submitting or recording it, and sets the model revision to the
// value the provider attributes to the edit. The synchronizer replays missed
// edits through this path.
func (c *Controller) ApplyRemote(ctx context.Context, op edit.Operation, revision uint64) error {
	pair, ok := c.handlerFor(op.Type)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, op.Type)
	}

	applied, err := pair.apply(ctx, c.model, op)
	if err != nil {
		return fmt.Errorf("applying remote %s: %w", op.Type, err)
	}
	if !applied.Success {
		if applied.Err != nil {
			return fmt.Errorf("applying remote %s: %w", op.Type, applied.Err)
		}
		return fmt.Errorf("applying remote %s: handler reported failure", op.Type)
	}

	c.model.SetRevision(revision)
	return nil
}

// ChildController returns the controller for the (modelType, modelID) child,
// creating it lazily from the configured resolver. It returns (nil, nil)
// when the pair names no child model, and an error when the resolved child
// collides with a pair the tree already owns.
func (c *Controller) ChildController(modelType, modelID string) (*Controller, error) {
	key := childKey{modelType: modelType, modelID: modelID}
	if key.modelType == c.model.ModelType() && key.modelID == c.model.ModelID() {
		return nil, fmt.Errorf("%w: %s/%s is the controller's own model", ErrDuplicateChild, modelType, modelID)
	}

	c.mu.Lock()
	if child, ok := c.children[key]; ok {
		c.mu.Unlock()
		return child, nil
	}
	resolver, factory := c.resolver, c.factory
	c.mu.Unlock()

	if resolver == nil {
		return nil, nil
	}
	m, ok := resolver(modelType, modelID)
	if !ok {
		return nil, nil
	}
	if m.ModelType() != modelType || m.ModelID() != modelID {
		return nil, fmt.Errorf("resolved child %s/%s does not match requested %s/%s",
			m.ModelType(), m.ModelID(), modelType, modelID)
	}

	var child *Controller
	if factory != nil {
		child = factory(m)
	} else {
		child = New(m, WithRecorder(c.currentRecorder()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.children[key]; ok {
		return existing, nil
	}
	c.children[key] = child
	return child, nil
}

// rollback re-applies the reverse edits locally, in the order given, without
// touching the revision.
func (c *Controller) rollback(ctx context.Context, reverses []edit.Operation) error {
	for _, op := range reverses {
		pair, ok := c.handlerFor(op.Type)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoHandler, op.Type)
		}
		applied, err := pair.apply(ctx, c.model, op)
		if err != nil {
			return fmt.Errorf("re-applying %s: %w", op.Type, err)
		}
		if !applied.Success {
			if applied.Err != nil {
				return fmt.Errorf("re-applying %s: %w", op.Type, applied.Err)
			}
			return fmt.Errorf("re-applying %s: handler reported failure", op.Type)
		}
	}
	return nil
}

func (c *Controller) handlerFor(editType string) (handlerPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pair, ok := c.handlers[editType]
	return pair, ok
}

func (c *Controller) currentRecorder() Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorder
}
