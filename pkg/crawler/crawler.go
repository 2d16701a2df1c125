package crawler

import (
	"context"
	"fmt"

	"archivescraper/internal/downloader"
	"archivescraper/pkg/archive"
	"archivescraper/pkg/config"
	"archivescraper/pkg/extract"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/models"
	"archivescraper/pkg/storage"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// Fetcher retrieves archive documents and media bodies
type Fetcher interface {
	GetDocument(ctx context.Context, url string) (*goquery.Document, error)
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// HyperlinkSink records links found in a post
type HyperlinkSink interface {
	Append(threadID, postID string, links []string) (int, error)
}

// Summary counts what a crawl did
type Summary struct {
	Pages         int
	PagesFailed   int
	Threads       int
	ThreadsFailed int
	Posts         int
	MediaWritten  int
	MediaSkipped  int
	Hyperlinks    int
}

// Fields renders the summary for structured logging
func (s Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"pages":          s.Pages,
		"pages_failed":   s.PagesFailed,
		"threads":        s.Threads,
		"threads_failed": s.ThreadsFailed,
		"posts":          s.Posts,
		"media_written":  s.MediaWritten,
		"media_skipped":  s.MediaSkipped,
		"hyperlinks":     s.Hyperlinks,
	}
}

// Options wires a Crawler together
type Options struct {
	Archive   config.ArchiveConfig
	Fetcher   Fetcher
	Extractor *extract.Extractor
	Media     downloader.Store
	Links     HyperlinkSink
	Metrics   *metrics.Metrics
	Logger    logger.Logger
	RunID     string
}

// Crawler walks listing pages in order, visits every thread they name and
// stores the media and hyperlinks of each post.
type Crawler struct {
	archive   config.ArchiveConfig
	fetcher   Fetcher
	extractor *extract.Extractor
	media     downloader.Store
	links     HyperlinkSink
	metrics   *metrics.Metrics
	logger    logger.Logger
	runID     string
}

// New creates a Crawler. A run id is generated when none is given.
func New(opts Options) *Crawler {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Crawler{
		archive:   opts.Archive,
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		media:     opts.Media,
		links:     opts.Links,
		metrics:   opts.Metrics,
		logger:    log.WithField("run_id", runID),
		runID:     runID,
	}
}

// RunID identifies this crawl in logs
func (c *Crawler) RunID() string {
	return c.runID
}

// Run crawls every page from StartPage to EndPage inclusive. Page and thread
// failures are logged and skipped; the only error returned is ctx's.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	c.logger.InfoWithFields("Crawl started", map[string]interface{}{
		"start_page": c.archive.StartPage,
		"end_page":   c.archive.EndPage,
	})

	for page := c.archive.StartPage; page <= c.archive.EndPage; page++ {
		if err := ctx.Err(); err != nil {
			c.logger.WithError(err).WarnWithFields("Crawl interrupted", sum.Fields())
			return sum, err
		}
		c.ProcessPage(ctx, page, &sum)
	}

	c.logger.InfoWithFields("Process finished", sum.Fields())
	return sum, ctx.Err()
}

// ProcessPage resolves one listing page and processes each thread on it
func (c *Crawler) ProcessPage(ctx context.Context, page int, sum *Summary) {
	log := c.logger.WithField("page", page)
	log.Info("Reading page")

	threadIDs, err := c.ThreadIDs(ctx, page)
	if err != nil {
		sum.PagesFailed++
		c.metrics.Page(metrics.StatusFailed)
		log.WithError(err).Error("Failed to read page")
		return
	}
	sum.Pages++
	c.metrics.Page(metrics.StatusOK)

	if len(threadIDs) == 0 {
		log.Info("No threads on page")
		return
	}
	log.InfoWithFields("Got thread ids", map[string]interface{}{
		"threads": threadIDs,
	})

	for _, threadID := range threadIDs {
		if ctx.Err() != nil {
			return
		}
		if err := c.ProcessThread(ctx, threadID, sum); err != nil {
			sum.ThreadsFailed++
			c.metrics.Thread(metrics.StatusFailed)
			log.WithError(err).WithField("thread_id", threadID).
				Error("An error occurred when downloading from thread")
			continue
		}
		sum.Threads++
		c.metrics.Thread(metrics.StatusOK)
	}
}

// ThreadIDs fetches listing page n and returns the thread ids on it
func (c *Crawler) ThreadIDs(ctx context.Context, page int) ([]string, error) {
	doc, err := c.fetcher.GetDocument(ctx, archive.ListingURL(c.archive.SearchURL, page))
	if err != nil {
		return nil, err
	}
	return c.extractor.ThreadIDs(doc), nil
}

// ProcessThread fetches a thread and stores each reply's media and links.
// A media failure stops the thread and is returned; a hyperlink log failure
// is only logged.
func (c *Crawler) ProcessThread(ctx context.Context, threadID string, sum *Summary) error {
	log := c.logger.WithField("thread_id", threadID)
	log.Info("Requesting thread page")

	doc, err := c.fetcher.GetDocument(ctx, archive.ThreadURL(c.archive.ThreadURL, threadID))
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}

	for _, post := range c.extractor.Posts(doc) {
		if post.Skippable() {
			continue
		}
		if !post.HasID {
			log.Warn("Attempted to read an article with a missing ID")
			continue
		}
		if !models.SafeSegment(post.ID) {
			log.WithField("post_id", post.ID).Warn("Skipping article with an unusable ID")
			continue
		}
		sum.Posts++

		if ref, ok := c.extractor.Media(post.Selection); ok {
			result := downloader.Download(ctx, c.fetcher, c.media, downloader.Job{
				Key:   storage.MediaKey{ThreadID: threadID, PostID: post.ID},
				Media: ref,
			})
			logger.LogStored(c.logger, threadID, post.ID, result.Path, result.Written, result.Error)

			switch {
			case result.Error != nil:
				c.metrics.Media(metrics.MediaFailed, 0)
				return fmt.Errorf("post %s: %w", post.ID, result.Error)
			case result.Written:
				sum.MediaWritten++
				c.metrics.Media(metrics.MediaWritten, result.Size)
			default:
				sum.MediaSkipped++
				c.metrics.Media(metrics.MediaSkipped, 0)
			}
		}

		links, ok := c.extractor.Hyperlinks(post.Selection)
		if !ok || len(links) == 0 {
			continue
		}
		log.InfoWithFields("Extracted hyperlinks of interest", map[string]interface{}{
			"post_id":    post.ID,
			"hyperlinks": links,
		})

		n, err := c.links.Append(threadID, post.ID, links)
		sum.Hyperlinks += n
		c.metrics.Hyperlinks(n)
		if err != nil {
			log.WithError(err).WithField("post_id", post.ID).Error("Failed to record hyperlinks")
		}
	}
	return nil
}
