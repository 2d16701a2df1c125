package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultJitter is the upper bound of the random delay added after each admission
const DefaultJitter = 236857093 * time.Nanosecond

// DeviationLimiter paces requests through a shared TokenBucket and adds a
// uniformly random delay in [0, jitter) after every admission.
type DeviationLimiter struct {
	bucket *TokenBucket
	jitter time.Duration

	mu  sync.Mutex // guards rng only
	rng *rand.Rand

	observe func(time.Duration)
}

// Option configures a DeviationLimiter
type Option func(*DeviationLimiter)

// WithSeed makes the jitter sequence reproducible
func WithSeed(seed uint64) Option {
	return func(d *DeviationLimiter) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithObserver registers a callback receiving the total time spent in each Wait
func WithObserver(fn func(time.Duration)) Option {
	return func(d *DeviationLimiter) {
		d.observe = fn
	}
}

// NewDeviationLimiter wraps bucket with per-call jitter
func NewDeviationLimiter(bucket *TokenBucket, jitter time.Duration, opts ...Option) *DeviationLimiter {
	d := &DeviationLimiter{
		bucket: bucket,
		jitter: jitter,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Wait draws the jitter, waits for a token, then sleeps the jitter.
// With a live context it always succeeds eventually.
func (d *DeviationLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	deviation := d.deviation()

	if err := d.bucket.Wait(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, deviation); err != nil {
		return err
	}

	if d.observe != nil {
		d.observe(time.Since(start))
	}
	return nil
}

func (d *DeviationLimiter) deviation() time.Duration {
	if d.jitter <= 0 {
		return 0
	}

	d.mu.Lock()
	n := d.rng.Int64N(int64(d.jitter))
	d.mu.Unlock()

	return time.Duration(n)
}
