package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/extract"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/ratelimit"
	"archivescraper/pkg/retry"

	"github.com/PuerkitoBio/goquery"
)

// Doer is the part of *http.Client the archive client needs
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives one call per physical fetch attempt
type Recorder interface {
	FetchAttempt(outcome string)
}

// Attempt outcomes passed to Recorder
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Policy bounds one logical fetch
type Policy struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Options configures a Client
type Options struct {
	HTTPClient Doer
	Timeout    time.Duration
	UserAgent  string
	Limiter    ratelimit.Limiter
	Policy     Policy
	Logger     logger.Logger
	Recorder   Recorder
}

// Client fetches archive pages and media. Every physical request waits on
// the shared limiter first, and failed requests are retried per Policy.
type Client struct {
	httpClient Doer
	headers    map[string]string
	limiter    ratelimit.Limiter
	policy     Policy
	logger     logger.Logger
	recorder   Recorder
}

// NewClient creates a new archive client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	return &Client{
		httpClient: httpClient,
		headers:    headers,
		limiter:    opts.Limiter,
		policy:     opts.Policy,
		logger:     log,
		recorder:   opts.Recorder,
	}
}

// Fetch performs a GET of url using the client's retry policy
func (c *Client) Fetch(ctx context.Context, url string) (*http.Response, error) {
	return c.FetchWithPolicy(ctx, url, c.policy)
}

// FetchWithPolicy performs a GET of url, making at most p.MaxAttempts
// requests. Transport errors and HTTP error statuses are both retried after
// p.RetryDelay. The caller owns the returned body.
func (c *Client) FetchWithPolicy(ctx context.Context, url string, p Policy) (*http.Response, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context, attempt int) (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.get(ctx, url)
		if err != nil {
			c.record(OutcomeFailure)
			return nil, err
		}
		c.record(OutcomeSuccess)
		return resp, nil
	}, &retry.Config{
		MaxAttempts: p.MaxAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: p.RetryDelay},
		Target:      url,
		Logger:      c.logger,
	})
}

// get performs a single request
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("Sending HTTP request", map[string]interface{}{
		"url": url,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Network(url, err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, errs.Status(url, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) record(outcome string) {
	if c.recorder != nil {
		c.recorder.FetchAttempt(outcome)
	}
}

// GetDocument fetches url and parses the body as HTML
func (c *Client) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := extract.ParseDocument(resp.Body)
	if err != nil {
		return nil, errs.Parsing(url, err)
	}
	return doc, nil
}

// GetBytes fetches url and returns the whole body
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Network(url, fmt.Errorf("failed to read body: %w", err))
	}
	return data, nil
}
