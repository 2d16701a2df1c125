// Package crawler drives a crawl of the archive.
//
// A Crawler walks listing pages from the configured start page to the end
// page inclusive. Each page names a set of threads; every thread page is
// fetched and its replies are inspected for an attached media file and for
// outbound hyperlinks.
//
// Failure handling is deliberately uneven:
//
//   - a listing page that cannot be fetched is logged and the next page is tried
//   - a thread page that cannot be fetched is logged and the next thread is tried
//   - a media download or write failure abandons the rest of that thread
//   - a hyperlink log failure is logged and the crawl goes on
//
// All requests share one rate limiter, so a crawl is strictly sequential and
// never exceeds the configured pace.
//
// Usage:
//
//	c := crawler.NewFromConfig(cfg, log, metrics.New())
//	summary, err := c.Run(ctx)
//
// ImportURLList downloads media from a previously written hyperlink list
// through a small worker pool. Posts that appear more than once get numbered
// file suffixes.
package crawler
