package crawler

import (
	"archivescraper/pkg/archive"
	"archivescraper/pkg/config"
	"archivescraper/pkg/extract"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/ratelimit"
	"archivescraper/pkg/storage"
)

// NewFromConfig assembles a Crawler from configuration. m may be nil.
func NewFromConfig(cfg *config.Config, log logger.Logger, m *metrics.Metrics) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}

	bucket := ratelimit.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.Interval)
	limiter := ratelimit.NewDeviationLimiter(bucket, cfg.RateLimit.Jitter,
		ratelimit.WithObserver(m.RateLimitWait))

	var recorder archive.Recorder
	if m != nil {
		recorder = m
	}

	client := archive.NewClient(archive.Options{
		Timeout:   cfg.Download.RequestTimeout,
		UserAgent: cfg.Archive.UserAgent,
		Limiter:   limiter,
		Policy: archive.Policy{
			MaxAttempts: cfg.RateLimit.MaxRetries,
			RetryDelay:  cfg.RateLimit.RetryDelay,
		},
		Logger:   log,
		Recorder: recorder,
	})

	logger.LogComponentStart(log, "rate_limiter", map[string]interface{}{
		"capacity": cfg.RateLimit.Capacity,
		"interval": cfg.RateLimit.Interval.String(),
		"jitter":   cfg.RateLimit.Jitter.String(),
	})

	return New(Options{
		Archive:   cfg.Archive,
		Fetcher:   client,
		Extractor: extract.New(cfg.Archive.BannedSubstrings),
		Media:     storage.NewMediaStore(cfg.Output.DataDirectory),
		Links:     storage.NewHyperlinkLog(cfg.HyperlinkPath(), log),
		Metrics:   m,
		Logger:    log,
	})
}
