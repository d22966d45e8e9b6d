package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a fixed politeness delay between requests to the crawl
// target. A nil Limiter or a zero delay means no waiting.
//
// Design decision: We build on rate.Limiter rather than sleeping in each
// fetch task because the token bucket serializes the delay across all
// concurrent tasks: with N workers and a 1s delay, requests still go out at
// most one per second, not N per second.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a Limiter that allows one request per delay interval.
// Returns nil when delay is not positive, which callers treat as unlimited.
func NewLimiter(delay time.Duration) *Limiter {
	if delay <= 0 {
		return nil
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Wait blocks until the next request is allowed or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
