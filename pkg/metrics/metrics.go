// Package metrics exposes Prometheus collectors for crawl progress.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values
const (
	StatusOK     = "ok"
	StatusFailed = "failed"

	MediaWritten = "written"
	MediaSkipped = "skipped"
	MediaFailed  = "failed"
)

// Metrics holds the crawler's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pages         *prometheus.CounterVec
	threads       *prometheus.CounterVec
	media         *prometheus.CounterVec
	mediaBytes    prometheus.Counter
	hyperlinks    prometheus.Counter
	fetchAttempts *prometheus.CounterVec
	rateLimitWait prometheus.Histogram
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivescraper_pages_total",
				Help: "Listing pages processed, labeled by status.",
			},
			[]string{"status"},
		),
		threads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivescraper_threads_total",
				Help: "Threads processed, labeled by status.",
			},
			[]string{"status"},
		),
		media: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivescraper_media_total",
				Help: "Media files handled, labeled by result.",
			},
			[]string{"result"},
		),
		mediaBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "archivescraper_media_bytes_total",
				Help: "Bytes of media written to disk.",
			},
		),
		hyperlinks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "archivescraper_hyperlinks_total",
				Help: "Hyperlink lines appended to the hyperlink log.",
			},
		),
		fetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivescraper_fetch_attempts_total",
				Help: "Physical HTTP attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		rateLimitWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archivescraper_rate_limit_wait_seconds",
				Help:    "Time spent in the rate limiter including jitter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Page(status string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(status).Inc()
}

func (m *Metrics) Thread(status string) {
	if m == nil {
		return
	}
	m.threads.WithLabelValues(status).Inc()
}

// Media counts one media file; bytes only count towards written files
func (m *Metrics) Media(result string, bytes int) {
	if m == nil {
		return
	}
	m.media.WithLabelValues(result).Inc()
	if result == MediaWritten && bytes > 0 {
		m.mediaBytes.Add(float64(bytes))
	}
}

func (m *Metrics) Hyperlinks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.hyperlinks.Add(float64(n))
}

// FetchAttempt satisfies archive.Recorder
func (m *Metrics) FetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(outcome).Inc()
}

// RateLimitWait is passed to ratelimit.WithObserver
func (m *Metrics) RateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.Observe(d.Seconds())
}
