// Package archive talks HTTP to the forum archive.
//
// Client wraps an HTTP client with the browser-like headers the archive
// expects, waits on a shared ratelimit.Limiter before every request and
// retries failed requests a bounded number of times with a constant delay.
// An HTTP error status is treated the same as a transport error.
//
//	client := archive.NewClient(archive.Options{
//	    Limiter:   limiter,
//	    UserAgent: cfg.Archive.UserAgent,
//	    Policy:    archive.Policy{MaxAttempts: 5, RetryDelay: 51 * time.Millisecond},
//	})
//	doc, err := client.GetDocument(ctx, archive.ListingURL(cfg.Archive.SearchURL, 3))
package archive
