package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces webhook delivery so each channel stays inside its
// service's documented request budget.
type RateLimiter struct {
	bucket *rate.Limiter
}

// NewRateLimiter returns a limiter that admits up to burst sends at once
// and refills at requestsPerSecond.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow blocks until a send may proceed or ctx ends. Call it before every
// webhook request.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.bucket.Wait(ctx)
}
