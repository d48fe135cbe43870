package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter caps the outbound request rate of each quote source independently.
type Limiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// New creates a limiter allowing perSecond requests per source.
// A non-positive perSecond disables limiting.
func New(perSecond float64) *Limiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Limiter{
		limit:    limit,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
}

// get returns the limiter for a source, creating it on first use
func (l *Limiter) get(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[source]
	if !exists {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[source] = limiter
	}
	return limiter
}

// Wait blocks until the rate limiter permits a request to the given source
// It returns an error if the context is canceled before the request can proceed
func (l *Limiter) Wait(ctx context.Context, source string) error {
	return l.get(source).Wait(ctx)
}

