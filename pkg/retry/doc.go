// Package retry runs an operation a bounded number of times with a constant
// delay between failed attempts.
//
//	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		return fetchOnce(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 5,
//		Backoff:     &retry.ConstantBackoff{Delay: 50 * time.Millisecond},
//		Target:      url,
//		Logger:      log,
//	})
//
// A MaxAttempts of zero never calls the operation. Once every attempt has
// failed the error satisfies errors.Is(err, errors.ErrAttemptsExhausted)
// from archivescraper/pkg/errors.
package retry
