// Package ratelimit paces outbound requests to the archive.
//
// TokenBucket is a classic token bucket backed by golang.org/x/time/rate:
// it admits a burst of capacity requests and refills capacity tokens per
// interval. When no token is available TryWait reports how long to wait and
// Wait sleeps that long before checking again.
//
// DeviationLimiter adds a uniformly random delay in [0, jitter) after every
// admitted request so the request cadence does not look machine generated.
// Only the random draw is serialized; waiters never hold the lock while
// sleeping.
//
//	bucket := ratelimit.NewTokenBucket(4, 143240219*time.Nanosecond)
//	limiter := ratelimit.NewDeviationLimiter(bucket, ratelimit.DefaultJitter)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // ctx was cancelled
//	}
package ratelimit
