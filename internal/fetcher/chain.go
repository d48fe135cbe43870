package fetcher

import (
	"context"
	"log/slog"
	"time"

	"mervalboard/internal/instrument"
)

// Waiter gates outbound calls per source.
type Waiter interface {
	Wait(ctx context.Context, source string) error
}

// Observer is notified of every source attempt made by a Chain.
type Observer interface {
	ObserveSource(source string, ok bool, elapsed time.Duration)
}

// Chain resolves an instrument by trying its sources in order until one
// yields a price. A failed source is never retried within the same call.
type Chain struct {
	sources  []Source
	timeout  time.Duration
	limiter  Waiter
	observer Observer
	logger   *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithTimeout bounds each source attempt. Expiry counts as that source failing.
func WithTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// WithLimiter makes every attempt wait on the limiter for its source first.
func WithLimiter(w Waiter) ChainOption {
	return func(c *Chain) { c.limiter = w }
}

// WithObserver reports each attempt to o.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// WithLogger sets the chain logger.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates a Chain over sources, tried in the given order.
func NewChain(sources []Source, opts ...ChainOption) *Chain {
	c := &Chain{
		sources: sources,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Source.
func (c *Chain) Name() string {
	return "chain"
}

// Quote returns the first quote carrying a price, or the last source's
// result when every source comes back empty.
func (c *Chain) Quote(ctx context.Context, inst instrument.Instrument) Quote {
	q := Unavailable()
	for i, src := range c.sources {
		q = c.attempt(ctx, src, inst)
		if q.Available() {
			if i > 0 {
				c.logger.Debug("resolved by fallback source",
					"symbol", inst.Symbol,
					"source", src.Name(),
					"position", i+1)
			}
			return q
		}
	}
	return q
}

func (c *Chain) attempt(ctx context.Context, src Source, inst instrument.Instrument) Quote {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	q := Unavailable()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, src.Name()); err != nil {
			c.logger.Debug("rate limiter wait aborted",
				"source", src.Name(),
				"symbol", inst.Symbol,
				"error", err)
			c.observe(src.Name(), false, time.Since(start))
			return q
		}
	}

	q = src.Quote(ctx, inst)
	c.observe(src.Name(), q.Available(), time.Since(start))
	return q
}

func (c *Chain) observe(source string, ok bool, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveSource(source, ok, elapsed)
	}
}
