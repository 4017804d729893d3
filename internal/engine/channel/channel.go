package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jjvainav/sprig-sub001/internal/engine/edit"
	"github.com/jjvainav/sprig-sub001/internal/engine/queue"
)

// timeNow is a variable to allow testing with fixed timestamps.
var timeNow = time.Now

// ErrNoEdits is returned when Publish is called without any operations.
var ErrNoEdits = errors.New("publish requires at least one edit")

// Dispatcher decides the authoritative outcome of one edit and returns the
// reverse edit that undoes it. It may fail, in which case the publish that
// submitted the edit rejects.
type Dispatcher interface {
	Dispatch(ctx context.Context, op edit.Operation) (edit.Operation, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, op edit.Operation) (edit.Operation, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, op edit.Operation) (edit.Operation, error) {
	return f(ctx, op)
}

// Callback receives one dispatch result. Callbacks run isolated from each
// other: a failure or panic in one never blocks the rest.
type Callback func(ctx context.Context, res edit.Result) error

// Channel routes edits from publishers through one dispatcher and fans the
// results out to observers. Deliveries run through a sequential queue so
// observers see results in the order dispatches resolve, whether or not the
// publisher waits on them.
type Channel struct {
	dispatcher Dispatcher
	deliveries *queue.Queue

	mu        sync.RWMutex
	callbacks map[string]Callback
}

// New creates a channel bound to the given dispatcher.
func New(d Dispatcher) *Channel {
	return &Channel{
		dispatcher: d,
		deliveries: queue.New(),
		callbacks:  make(map[string]Callback),
	}
}

// Factory creates channels that share one dispatcher.
type Factory struct {
	dispatcher Dispatcher
}

// NewFactory creates a channel factory for the given dispatcher.
func NewFactory(d Dispatcher) *Factory {
	return &Factory{dispatcher: d}
}

// NewChannel creates a channel bound to the factory's dispatcher.
func (f *Factory) NewChannel() *Channel {
	return New(f.dispatcher)
}

// Publisher creates a publisher for the channel.
func (c *Channel) Publisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{channel: c}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Observer creates an observer for the channel.
func (c *Channel) Observer() *Observer {
	return &Observer{channel: c}
}

// subscribe registers a callback and returns its removal key.
func (c *Channel) subscribe(cb Callback) string {
	id := uuid.New().String()
	c.mu.Lock()
	c.callbacks[id] = cb
	c.mu.Unlock()
	return id
}

func (c *Channel) unsubscribe(id string) {
	c.mu.Lock()
	delete(c.callbacks, id)
	c.mu.Unlock()
}

// notify delivers res to every callback subscribed at call time. Each
// callback runs isolated; panics are swallowed so one observer cannot take
// down the rest.
func (c *Channel) notify(ctx context.Context, res edit.Result) {
	c.mu.RLock()
	callbacks := make([]Callback, 0, len(c.callbacks))
	for _, cb := range c.callbacks {
		callbacks = append(callbacks, cb)
	}
	c.mu.RUnlock()

	for _, cb := range callbacks {
		runCallback(ctx, cb, res)
	}
}

func runCallback(ctx context.Context, cb Callback, res edit.Result) {
	defer func() {
		_ = recover()
	}()
	_ = cb(ctx, res)
}

// Publisher submits edits to the channel's dispatcher.
type Publisher struct {
	channel         *Channel
	waitOnObservers bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithWaitOnObservers makes Publish return only after every subscribed
// observer callback has completed for the published result. Callers use this
// to guarantee side effects such as history recording have landed before
// proceeding.
func WithWaitOnObservers() PublisherOption {
	return func(p *Publisher) {
		p.waitOnObservers = true
	}
}

// Publish hands the edits to the dispatcher in order and resolves with the
// combined result. For a batch the result carries the reverses in reverse
// order relative to the input, so replaying them front to back unwinds the
// batch correctly.
//
// A dispatcher failure rejects the publish: no result is produced and no
// observer is notified. When the publisher waits on observers, cancellation
// of ctx while waiting returns the result together with the context error;
// delivery still happens in order.
func (p *Publisher) Publish(ctx context.Context, edits ...edit.Operation) (edit.Result, error) {
	if len(edits) == 0 {
		return edit.Result{}, ErrNoEdits
	}

	published := make([]edit.Operation, len(edits))
	copy(published, edits)

	reverses := make([]edit.Operation, 0, len(edits))
	for _, op := range published {
		reverse, err := p.channel.dispatcher.Dispatch(ctx, op)
		if err != nil {
			return edit.Result{}, fmt.Errorf("dispatching %s: %w", op.Type, err)
		}
		reverses = append(reverses, reverse)
	}
	for i, j := 0, len(reverses)-1; i < j; i, j = i+1, j-1 {
		reverses[i], reverses[j] = reverses[j], reverses[i]
	}

	res := edit.Result{
		Success:   true,
		Edits:     published,
		Reverses:  reverses,
		Timestamp: timeNow(),
	}

	// Delivery outlives the publish call, so callbacks get a background
	// context rather than the caller's.
	future := p.channel.deliveries.Push(context.Background(), func(ctx context.Context) (any, error) {
		p.channel.notify(ctx, res)
		return nil, nil
	})
	if p.waitOnObservers {
		if _, err := future.Wait(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Observer subscribes callbacks to every result flowing through a channel.
type Observer struct {
	channel *Channel

	mu        sync.Mutex
	listeners []*Listener
}

// On subscribes cb to the channel's dispatch results.
func (o *Observer) On(cb Callback) *Listener {
	l := &Listener{
		id:      o.channel.subscribe(cb),
		channel: o.channel,
	}
	o.mu.Lock()
	o.listeners = append(o.listeners, l)
	o.mu.Unlock()
	return l
}

// RemoveAll removes every listener created by this observer.
func (o *Observer) RemoveAll() {
	o.mu.Lock()
	listeners := o.listeners
	o.listeners = nil
	o.mu.Unlock()

	for _, l := range listeners {
		l.Remove()
	}
}

// Listener is one active observer subscription.
type Listener struct {
	id      string
	channel *Channel
	once    sync.Once
}

// Remove cancels the subscription. Safe to call more than once.
func (l *Listener) Remove() {
	l.once.Do(func() {
		l.channel.unsubscribe(l.id)
	})
}
