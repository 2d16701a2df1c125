package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport fails the first `fail` calls and then answers 200
type stubTransport struct {
	fail      int
	failWith  int // status code, 0 means transport error
	calls     int
	lastAgent string
}

func (s *stubTransport) Do(req *http.Request) (*http.Response, error) {
	s.calls++
	s.lastAgent = req.Header.Get("User-Agent")
	if s.calls <= s.fail {
		if s.failWith == 0 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return &http.Response{
			StatusCode: s.failWith,
			Body:       io.NopCloser(bytes.NewBufferString("busy")),
			Header:     make(http.Header),
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString("<html><article id=\"t1\"></article></html>")),
		Header:     make(http.Header),
	}, nil
}

// countingLimiter admits immediately and counts waits
type countingLimiter struct {
	waits atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

type recorder struct {
	outcomes []string
}

func (r *recorder) FetchAttempt(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func newStubClient(transport Doer, limiter *countingLimiter, maxAttempts int) *Client {
	return NewClient(Options{
		HTTPClient: transport,
		UserAgent:  "archivescraper-test",
		Limiter:    limiter,
		Policy:     Policy{MaxAttempts: maxAttempts, RetryDelay: time.Millisecond},
		Logger:     logger.NewNopLogger(),
	})
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	for _, failWith := range []int{0, http.StatusServiceUnavailable} {
		for k := 0; k < 5; k++ {
			transport := &stubTransport{fail: k, failWith: failWith}
			limiter := &countingLimiter{}
			client := newStubClient(transport, limiter, 5)

			resp, err := client.Fetch(context.Background(), "http://archive/thread/1")
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, k+1, transport.calls)
			assert.Equal(t, int32(k+1), limiter.waits.Load(), "limiter must be awaited before every attempt")
		}
	}
}

func TestFetchExhausts(t *testing.T) {
	transport := &stubTransport{fail: 100, failWith: http.StatusBadGateway}
	rec := &recorder{}
	client := newStubClient(transport, &countingLimiter{}, 4)
	client.recorder = rec

	_, err := client.Fetch(context.Background(), "http://archive/page/9")
	require.Error(t, err)

	assert.Equal(t, 4, transport.calls)
	assert.True(t, errors.Is(err, errs.ErrAttemptsExhausted))
	assert.Contains(t, err.Error(), "http://archive/page/9")
	assert.Contains(t, err.Error(), "4 attempts")
	assert.Equal(t, []string{OutcomeFailure, OutcomeFailure, OutcomeFailure, OutcomeFailure}, rec.outcomes)
}

func TestFetchZeroAttempts(t *testing.T) {
	transport := &stubTransport{}
	limiter := &countingLimiter{}
	client := newStubClient(transport, limiter, 0)

	_, err := client.Fetch(context.Background(), "http://archive/page/1")
	assert.True(t, errors.Is(err, errs.ErrAttemptsExhausted))
	assert.Equal(t, 0, transport.calls)
	assert.Equal(t, int32(0), limiter.waits.Load())
}

func TestFetchSendsUserAgent(t *testing.T) {
	transport := &stubTransport{}
	client := newStubClient(transport, &countingLimiter{}, 1)

	resp, err := client.Fetch(context.Background(), "http://archive/page/1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "archivescraper-test", transport.lastAgent)
}

func TestFetchStopsWhenCancelled(t *testing.T) {
	transport := &stubTransport{}
	client := newStubClient(transport, &countingLimiter{}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "http://archive/page/1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, transport.calls)
}

func TestGetDocumentAndBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page/3":
			w.Write([]byte(`<html><body><article id="t1"></article><article id="t2"></article></body></html>`))
		case "/img.png":
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(Options{
		Timeout: 5 * time.Second,
		Policy:  Policy{MaxAttempts: 2, RetryDelay: time.Millisecond},
		Logger:  logger.NewNopLogger(),
	})

	doc, err := client.GetDocument(context.Background(), ListingURL(server.URL, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("article").Length())

	data, err := client.GetBytes(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	_, err = client.GetBytes(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	var last *errs.Error
	require.True(t, errors.As(errors.Unwrap(err), &last))
	assert.Equal(t, http.StatusNotFound, last.Code)
}

// trackingBody records whether it was read to the end and closed
type trackingBody struct {
	r      *bytes.Reader
	closed bool
}

func (b *trackingBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

type bodyTransport struct {
	bodies []*trackingBody
}

func (t *bodyTransport) Do(req *http.Request) (*http.Response, error) {
	body := &trackingBody{r: bytes.NewReader([]byte("upstream overloaded"))}
	t.bodies = append(t.bodies, body)
	return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: body, Header: make(http.Header)}, nil
}

func TestErrorStatusBodyIsDrainedAndClosed(t *testing.T) {
	transport := &bodyTransport{}
	client := NewClient(Options{
		HTTPClient: transport,
		Policy:     Policy{MaxAttempts: 2, RetryDelay: time.Millisecond},
		Logger:     logger.NewNopLogger(),
	})

	_, err := client.Fetch(context.Background(), "http://archive/page/1")
	require.Error(t, err)
	require.Len(t, transport.bodies, 2)
	for _, body := range transport.bodies {
		assert.True(t, body.closed)
		assert.Zero(t, body.r.Len(), "body should be drained before closing")
	}
}
