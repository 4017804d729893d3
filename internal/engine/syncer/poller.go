package syncer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultPollInterval is the interval between synchronization passes when
// none is configured.
const DefaultPollInterval = 30 * time.Second

// Poller runs Synchronize on an interval. A failed pass is retried with
// exponential backoff before the poller returns to its regular interval.
type Poller struct {
	syncer     *Syncer
	interval   time.Duration
	maxRetries uint64
	onError    func(error)
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxRetries bounds the backoff retries per failed pass.
func WithMaxRetries(n uint64) PollerOption {
	return func(p *Poller) {
		p.maxRetries = n
	}
}

// WithErrorHandler sets a callback invoked when a pass fails after retries.
func WithErrorHandler(fn func(error)) PollerOption {
	return func(p *Poller) {
		p.onError = fn
	}
}

// NewPoller creates a poller driving the given syncer.
func NewPoller(s *Syncer, opts ...PollerOption) *Poller {
	p := &Poller{
		syncer:     s,
		interval:   DefaultPollInterval,
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is done and returns ctx's error. Pass failures are
// reported to the error handler and never stop the poller.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.runOnce(ctx); err != nil && ctx.Err() == nil {
				if p.onError != nil {
					p.onError(err)
				}
			}
		}
	}
}

// runOnce runs one pass with backoff retries.
func (p *Poller) runOnce(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.maxRetries),
		ctx,
	)
	return backoff.Retry(func() error {
		return p.syncer.Synchronize(ctx)
	}, policy)
}
