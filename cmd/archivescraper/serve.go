package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// serveMetrics exposes m on addr until ctx is done
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(log, "metrics_server", map[string]interface{}{"address": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.LogComponentStop(log, "metrics_server", "crawl finished")
	return nil
}
