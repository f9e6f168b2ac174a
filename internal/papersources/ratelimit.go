// Package papersources holds the HTTP plumbing shared by the works API client
// and the fetch loop: a rate-limited HTTP client and token-bucket limiters.
package papersources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter. It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained requests
// with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// NewIntervalLimiter creates a limiter that admits one event immediately and
// then one event per interval. A non-positive interval never blocks.
func NewIntervalLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until an event is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// allow reports whether an event may happen now, consuming a token if so.
func (r *RateLimiter) allow() bool {
	return r.limiter.Allow()
}

// Interval returns the spacing between events, zero when unlimited.
func (r *RateLimiter) Interval() time.Duration {
	limit := r.limiter.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
