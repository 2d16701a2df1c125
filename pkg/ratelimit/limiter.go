package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until a request may proceed. It only fails when ctx is done.
	Wait(ctx context.Context) error
}

// TokenBucket admits up to capacity requests in a burst and refills
// capacity tokens every interval.
type TokenBucket struct {
	capacity int
	interval time.Duration
	limiter  *rate.Limiter
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	every := interval / time.Duration(capacity)
	return &TokenBucket{
		capacity: capacity,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(every), capacity),
	}
}

// Allow takes a token if one is available right now
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// TryWait takes a token if one is available. Otherwise nothing is consumed
// and the returned duration says how long until one will be.
func (tb *TokenBucket) TryWait() (time.Duration, bool) {
	now := time.Now()

	r := tb.limiter.ReserveN(now, 1)
	if !r.OK() {
		return tb.interval, false
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// Wait sleeps for whatever TryWait reports and re-checks until a token is granted
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		delay, ok := tb.TryWait()
		if ok {
			return nil
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
