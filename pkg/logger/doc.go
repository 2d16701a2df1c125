// Package logger provides structured logging for the archive scraper.
//
// It wraps zerolog behind a small Logger interface so components can be
// handed a logger (or a TestLogger in tests) instead of reaching for a
// global. Console output is coloured; when a log directory is configured
// every record is also appended to a daily file named
// archive_scraper.log.<YYYY-MM-DD>.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Page processed", map[string]interface{}{
//	    "page":    3,
//	    "threads": 12,
//	})
package logger
