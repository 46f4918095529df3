package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles regenerations with a token bucket.
type Limiter struct {
	inner *rate.Limiter
}

// NewIntervalLimiter allows one event per interval, with burst b.
// A non-positive interval disables throttling.
func NewIntervalLimiter(interval time.Duration, b int) *Limiter {
	if interval <= 0 {
		return &Limiter{inner: rate.NewLimiter(rate.Inf, b)}
	}
	return &Limiter{inner: rate.NewLimiter(rate.Every(interval), b)}
}

// Allow reports whether one event may happen now.
func (l *Limiter) Allow() bool {
	return l.inner.Allow()
}

// Wait blocks until an event is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
