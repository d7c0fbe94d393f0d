package poller

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/signals"
)

// #region config

// Config controls the poll cadence.
type Config struct {
	Interval    time.Duration // delay after a successful poll
	BackoffBase float64       // multiplier applied per consecutive failure
	MaxBackoff  time.Duration
}

// DefaultConfig returns the default cadence.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		BackoffBase: 1.5,
		MaxBackoff:  300 * time.Second,
	}
}

// #endregion config

// #region interfaces

// Source yields the current snapshot.
type Source interface {
	Fetch(ctx context.Context) (signals.Snapshot, error)
}

// Engine is the part of the decision engine the poller drives.
type Engine interface {
	Observe(snap signals.Snapshot) signals.Window
	Evaluate(ctx context.Context) (engine.Outcome, error)
	Flush() error
}

// #endregion interfaces

// #region poller

// Poller runs the fetch, observe, evaluate loop. Backoff state is private to one Run call.
type Poller struct {
	cfg    Config
	source Source
	engine Engine
	after  func(time.Duration) <-chan time.Time
}

func New(cfg Config, source Source, eng Engine) *Poller {
	return &Poller{cfg: cfg, source: source, engine: eng, after: time.After}
}

func (p *Poller) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(time.Duration(float64(p.cfg.Interval)*p.cfg.BackoffBase), p.cfg.MaxBackoff)
	b.Multiplier = p.cfg.BackoffBase
	b.MaxInterval = p.cfg.MaxBackoff
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Run polls until ctx is cancelled, then flushes the engine and returns nil.
// Cancellation interrupts the sleep between polls.
func (p *Poller) Run(ctx context.Context) error {
	b := p.newBackoff()
	defer func() {
		if err := p.engine.Flush(); err != nil {
			log.Printf("[POLL] flush on stop failed: %v", err)
		}
	}()

	log.Printf("[POLL] started (interval %s, backoff x%.2f up to %s)", p.cfg.Interval, p.cfg.BackoffBase, p.cfg.MaxBackoff)
	for {
		delay := p.cycle(ctx, b)
		select {
		case <-ctx.Done():
			log.Printf("[POLL] stopping")
			return nil
		case <-p.after(delay):
		}
	}
}

// cycle runs one poll and returns the delay before the next.
func (p *Poller) cycle(ctx context.Context, b *backoff.ExponentialBackOff) time.Duration {
	snap, err := p.source.Fetch(ctx)
	if err != nil {
		delay := b.NextBackOff()
		if ctx.Err() == nil {
			log.Printf("[POLL] state poll error, retrying in %s: %v", delay, err)
		}
		return delay
	}
	b.Reset()

	p.engine.Observe(snap)
	if _, err := p.engine.Evaluate(ctx); err != nil {
		log.Printf("[POLL] evaluate: %v", err)
	}
	return p.cfg.Interval
}

// #endregion poller
