package crawler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"archivescraper/internal/downloader"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/models"
	"archivescraper/pkg/storage"
)

// ImportSummary counts what a URL list import did
type ImportSummary struct {
	Lines        int
	Malformed    int
	MediaWritten int
	MediaSkipped int
	MediaFailed  int
}

// Fields renders the summary for structured logging
func (s ImportSummary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"lines":         s.Lines,
		"malformed":     s.Malformed,
		"media_written": s.MediaWritten,
		"media_skipped": s.MediaSkipped,
		"media_failed":  s.MediaFailed,
	}
}

// ImportURLListFile opens path and imports it with ImportURLList
func (c *Crawler) ImportURLListFile(ctx context.Context, path string, workers int) (ImportSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()

	return c.ImportURLList(ctx, f, workers)
}

// ImportURLList downloads every "<thread>-<post>: <url>.<ext>" line of r.
// The first entry for a post gets an empty suffix and later ones are
// numbered from 2, so repeated posts never overwrite each other. Individual
// failures are logged and counted.
func (c *Crawler) ImportURLList(ctx context.Context, r io.Reader, workers int) (ImportSummary, error) {
	var sum ImportSummary
	if workers < 1 {
		workers = 1
	}

	pool := downloader.NewWorkerPool(ctx, workers, c.fetcher, c.media, c.logger)
	pool.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			logger.LogStored(c.logger, result.Job.Key.ThreadID, result.Job.Key.PostID,
				result.Path, result.Written, result.Error)

			switch {
			case result.Error != nil:
				sum.MediaFailed++
				c.metrics.Media(metrics.MediaFailed, 0)
			case result.Written:
				sum.MediaWritten++
				c.metrics.Media(metrics.MediaWritten, result.Size)
			default:
				sum.MediaSkipped++
				c.metrics.Media(metrics.MediaSkipped, 0)
			}
		}
	}()

	seen := make(map[string]int)
	scanner := bufio.NewScanner(r)
	var submitErr error
	for scanner.Scan() {
		sum.Lines++
		line := scanner.Text()

		entry, ok := models.ParseListEntry(line)
		if !ok {
			sum.Malformed++
			c.logger.WithField("line", line).Debug("Skipping malformed list line")
			continue
		}

		seen[entry.PostID]++
		suffix := ""
		if n := seen[entry.PostID]; n > 1 {
			suffix = strconv.Itoa(n)
		}

		job := downloader.Job{
			Key: storage.MediaKey{
				ThreadID: entry.ThreadID,
				PostID:   entry.PostID,
				Suffix:   suffix,
			},
			Media: entry.Media,
		}
		if submitErr = pool.Submit(job); submitErr != nil {
			break
		}
	}
	scanErr := scanner.Err()

	pool.Stop()
	wg.Wait()

	c.logger.InfoWithFields("List import finished", sum.Fields())

	if submitErr != nil {
		return sum, submitErr
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if scanErr != nil {
		return sum, fmt.Errorf("read url list: %w", scanErr)
	}
	return sum, nil
}
