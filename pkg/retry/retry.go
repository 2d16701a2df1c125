package retry

import (
	"context"
	"errors"
	"fmt"

	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/logger"
)

// Operation is one attempt of something that might need retrying.
// attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// OperationWithResult is an Operation that also produces a value
type OperationWithResult[T any] func(ctx context.Context, attempt int) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts bounds the number of calls to the operation. Zero means
	// the operation is never called and Do fails immediately.
	MaxAttempts int
	// Backoff strategy to use between attempts
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called after each failed attempt
	OnRetry func(attempt int, err error)
	// Target names what is being retried in logs and errors, usually a URL
	Target string
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultRetryIf retries everything except context cancellation
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs op up to cfg.MaxAttempts times, sleeping the backoff delay between
// failed attempts. When every attempt fails the returned error is an
// exhausted error wrapping the last failure.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	_, err := DoWithResult(ctx, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, op(ctx, attempt)
	}, cfg)
	return err
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var zero T
	if cfg == nil {
		return zero, fmt.Errorf("retry: nil config")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = &ConstantBackoff{}
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"target":  cfg.Target,
					"attempt": attempt,
				})
			}
			return result, nil
		}

		lastErr = err
		if !retryIf(err) {
			return zero, err
		}

		remaining := cfg.MaxAttempts - attempt
		log.WarnWithFields("Attempt failed", map[string]interface{}{
			"target":             cfg.Target,
			"attempt":            attempt,
			"attempts_remaining": remaining,
			"error":              err.Error(),
		})
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		if remaining == 0 {
			break
		}
		delay := backoff.NextDelay(attempt)
		if err := Wait(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return zero, errs.Exhausted(cfg.Target, cfg.MaxAttempts, lastErr)
}
