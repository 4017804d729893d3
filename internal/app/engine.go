package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jjvainav/sprig-sub001/internal/config"
	"github.com/jjvainav/sprig-sub001/internal/engine/channel"
	"github.com/jjvainav/sprig-sub001/internal/engine/controller"
	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
	"github.com/jjvainav/sprig-sub001/internal/engine/history"
	"github.com/jjvainav/sprig-sub001/internal/engine/syncer"
)

// Options configures an Engine.
type Options struct {
	// Model is the root model the engine owns. Required.
	Model controller.Model

	// Dispatcher is the remote authority backing the engine's channel.
	// Optional; without it the engine has no channel.
	Dispatcher channel.Dispatcher

	// Provider supplies missed edits for catch-up. Optional; without it
	// Synchronize is unavailable.
	Provider syncer.Provider

	// Config holds engine settings; the zero value selects defaults.
	Config config.Config

	// Logger receives engine diagnostics. A nil logger is silent.
	Logger *Logger
}

// Engine binds a controller, history, channel, and syncer for one root
// model. Undo and redo republish reverse edits back through the controller,
// so an undone edit is re-applied locally and re-submitted remotely like
// any other edit.
type Engine struct {
	controller *controller.Controller
	history    *history.History
	channel    *channel.Channel
	syncer     *syncer.Syncer
	logger     *Logger
}

// NewEngine assembles an engine from the options.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("engine requires a model")
	}

	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}

	e := &Engine{logger: opts.Logger}

	e.controller = controller.New(opts.Model)
	e.history = history.New(
		&controllerPublisher{controller: e.controller},
		history.WithLimit(cfg.History.Limit),
	)
	e.controller.SetRecorder(e.history)

	if opts.Dispatcher != nil {
		e.channel = channel.New(opts.Dispatcher)
	}
	if opts.Provider != nil {
		e.syncer = syncer.New(e.controller, opts.Provider)
	}
	return e, nil
}

// Controller returns the root controller.
func (e *Engine) Controller() *controller.Controller {
	return e.controller
}

// History returns the undo/redo history.
func (e *Engine) History() *history.History {
	return e.history
}

// Channel returns the engine's channel, or nil when no dispatcher was
// configured.
func (e *Engine) Channel() *channel.Channel {
	return e.channel
}

// Register binds a handler pair on the root controller.
func (e *Engine) Register(editType string, apply controller.ApplyHandler, submit controller.SubmitHandler) error {
	return e.controller.Register(editType, apply, submit)
}

// PublishEdit runs the optimistic workflow on the root controller.
func (e *Engine) PublishEdit(ctx context.Context, op edit.Operation) (controller.Result, error) {
	e.logger.Debugf("publishing edit %s", op.Type)
	res, err := e.controller.PublishEdit(ctx, op)
	if err != nil {
		e.logger.Errorf("edit %s rejected: %v", op.Type, err)
	} else if !res.Success {
		e.logger.Warnf("edit %s failed and was rolled back: %v", op.Type, res.Err)
	}
	return res, err
}

// Undo reverts the most recent recorded edit.
func (e *Engine) Undo(ctx context.Context) (*history.Result, error) {
	return e.history.Undo(ctx)
}

// Redo re-applies the most recently undone edit.
func (e *Engine) Redo(ctx context.Context) (*history.Result, error) {
	return e.history.Redo(ctx)
}

// Synchronize catches the root model up with missed remote edits.
func (e *Engine) Synchronize(ctx context.Context) error {
	if e.syncer == nil {
		return fmt.Errorf("engine has no edit provider")
	}
	return e.syncer.Synchronize(ctx)
}

// SetHistoryLimit changes the undo stack bound at runtime, for config hot
// reload.
func (e *Engine) SetHistoryLimit(limit int) {
	e.history.SetLimit(limit)
}

// controllerPublisher routes history republishes through the controller, so
// an undone or redone edit runs the full apply/submit workflow. The
// history's own state machine keeps these republishes out of the recorder.
type controllerPublisher struct {
	controller *controller.Controller
}

// Publish applies each edit through the controller in order and assembles
// a channel-shaped result with the reverses in reverse order.
func (p *controllerPublisher) Publish(ctx context.Context, edits ...edit.Operation) (edit.Result, error) {
	if len(edits) == 0 {
		return edit.Result{}, channel.ErrNoEdits
	}

	published := make([]edit.Operation, len(edits))
	copy(published, edits)

	blocks := make([][]edit.Operation, 0, len(edits))
	for _, op := range published {
		res, err := p.controller.PublishEdit(ctx, op)
		if err != nil {
			return edit.Result{}, err
		}
		if !res.Success {
			return edit.Result{Edits: published, Err: res.Err, Timestamp: time.Now()}, nil
		}
		blocks = append(blocks, res.Reverses)
	}

	// Undoing the batch means reverting the last edit first; each block is
	// already ordered most recent first.
	var reverses []edit.Operation
	for i := len(blocks) - 1; i >= 0; i-- {
		reverses = append(reverses, blocks[i]...)
	}

	return edit.Result{
		Success:   true,
		Edits:     published,
		Reverses:  reverses,
		Revision:  p.controller.Revision(),
		Timestamp: time.Now(),
	}, nil
}
