package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archivescraper/pkg/config"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockArchiveServer serves listing pages, thread pages and media
type mockArchiveServer struct {
	server     *httptest.Server
	mu         sync.Mutex
	listings   map[int]string
	threads    map[string]string
	media      map[string][]byte
	mediaCalls int32
	pageCalls  int32
}

func newMockArchiveServer(t *testing.T) *mockArchiveServer {
	m := &mockArchiveServer{
		listings: make(map[int]string),
		threads:  make(map[string]string),
		media:    make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search/page/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.pageCalls, 1)
		var page int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/search/page/"), "%d", &page); err != nil {
			http.NotFound(w, r)
			return
		}
		m.mu.Lock()
		body, ok := m.listings[page]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/thread/", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		body, ok := m.threads[strings.TrimPrefix(r.URL.Path, "/thread/")]
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.mediaCalls, 1)
		m.mu.Lock()
		data, ok := m.media[strings.TrimPrefix(r.URL.Path, "/media/")]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockArchiveServer) URL() string {
	return m.server.URL
}

func listing(ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<article class="post" id="%s"></article>`, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func mediaPost(id, href, title string, links ...string) string {
	var text strings.Builder
	for _, l := range links {
		fmt.Fprintf(&text, `<a href="%s">%s</a><br>`, l, l)
	}
	return fmt.Sprintf(`<article class="post has_image" id="%s"><div class="post_wrapper">`+
		`<div class="post_file"><a class="post_file_filename" href="%s" title="%s">%s</a></div>`+
		`<div class="text">%s</div></div></article>`, id, href, title, title, text.String())
}

func textPost(id string, links ...string) string {
	var text strings.Builder
	for _, l := range links {
		fmt.Fprintf(&text, `<a href="%s">%s</a>`, l, l)
	}
	return fmt.Sprintf(`<article class="post" id="%s"><div class="post_wrapper"><div class="text">%s</div></div></article>`,
		id, text.String())
}

func thread(opID string, posts ...string) string {
	return fmt.Sprintf(`<html><body><article class="thread post_is_op" id="%s"></article>%s</body></html>`,
		opID, strings.Join(posts, ""))
}

func testConfig(t *testing.T, baseURL string, start, end int) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Archive.SearchURL = baseURL + "/search/"
	cfg.Archive.ThreadURL = baseURL + "/thread/"
	cfg.Archive.StartPage = start
	cfg.Archive.EndPage = end
	cfg.Archive.BannedSubstrings = []string{"twitter."}
	cfg.RateLimit.Capacity = 100
	cfg.RateLimit.Interval = 10 * time.Millisecond
	cfg.RateLimit.Jitter = 0
	cfg.RateLimit.MaxRetries = 2
	cfg.RateLimit.RetryDelay = time.Millisecond
	cfg.Output.DataDirectory = filepath.Join(t.TempDir(), "data")
	cfg.Download.RequestTimeout = 5 * time.Second
	return cfg
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunStoresMediaAndHyperlinks(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[3] = listing("t1", "t2")
	srv.threads["t1"] = thread("t1",
		mediaPost("p1", srv.URL()+"/media/img.png", "img.png",
			"https://twitter.com/a", "https://example.com/b"))
	srv.media["img.png"] = []byte("png-bytes")

	cfg := testConfig(t, srv.URL(), 3, 3)
	log := logger.NewTestLogger()
	c := NewFromConfig(cfg, log, nil)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Pages)
	assert.Equal(t, 0, sum.PagesFailed)
	assert.Equal(t, 1, sum.Threads)
	assert.Equal(t, 1, sum.ThreadsFailed, "t2 has no thread page")
	assert.Equal(t, 1, sum.Posts)
	assert.Equal(t, 1, sum.MediaWritten)
	assert.Equal(t, 1, sum.Hyperlinks)

	dataDir := cfg.Output.DataDirectory
	assert.Equal(t, "png-bytes", readFile(t, filepath.Join(dataDir, "t1", "t1-p1-.png")))
	assert.Equal(t, "t1-p1: https://example.com/b\n", readFile(t, cfg.HyperlinkPath()))

	assert.True(t, log.HasMessage("Process finished"))
	assert.True(t, log.HasMessage("An error occurred when downloading from thread"))
}

func TestRunIsIdempotentForMedia(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[1] = listing("t1")
	srv.threads["t1"] = thread("t1",
		mediaPost("p1", srv.URL()+"/media/img.jpg", "img.jpg", "https://example.com/b"))
	srv.media["img.jpg"] = []byte("jpg")

	cfg := testConfig(t, srv.URL(), 1, 1)
	c := NewFromConfig(cfg, logger.NewNopLogger(), nil)

	first, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.MediaWritten)

	second, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.MediaWritten)
	assert.Equal(t, 1, second.MediaSkipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.mediaCalls), "stored media is not fetched again")

	// the hyperlink log is append-only
	assert.Equal(t, "t1-p1: https://example.com/b\nt1-p1: https://example.com/b\n",
		readFile(t, cfg.HyperlinkPath()))
}

func TestRunContinuesPastFailedPage(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[2] = listing("t9")
	srv.threads["t9"] = thread("t9", textPost("p1", "https://example.com/x"))

	cfg := testConfig(t, srv.URL(), 1, 2)
	c := NewFromConfig(cfg, logger.NewNopLogger(), nil)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PagesFailed)
	assert.Equal(t, 1, sum.Pages)
	assert.Equal(t, 1, sum.Threads)
	assert.Equal(t, "t9-p1: https://example.com/x\n", readFile(t, cfg.HyperlinkPath()))
	// page 1 was attempted MaxRetries times, page 2 once
	assert.Equal(t, int32(3), atomic.LoadInt32(&srv.pageCalls))
}

func TestMediaFailureAbandonsThread(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[1] = listing("t1", "t2")
	srv.threads["t1"] = thread("t1",
		mediaPost("p1", srv.URL()+"/media/missing.png", "missing.png"),
		textPost("p2", "https://example.com/never"))
	srv.threads["t2"] = thread("t2", textPost("p3", "https://example.com/later"))

	cfg := testConfig(t, srv.URL(), 1, 1)
	c := NewFromConfig(cfg, logger.NewNopLogger(), nil)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ThreadsFailed)
	assert.Equal(t, 1, sum.Threads)
	assert.Equal(t, "t2-p3: https://example.com/later\n", readFile(t, cfg.HyperlinkPath()))
	assert.NoFileExists(t, filepath.Join(cfg.Output.DataDirectory, "t1", "t1-p1-.png"))
}

func TestHyperlinkFailureDoesNotStopThread(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[1] = listing("t1")
	srv.threads["t1"] = thread("t1",
		textPost("p1", "https://example.com/a"),
		mediaPost("p2", srv.URL()+"/media/b.gif", "b.gif"))
	srv.media["b.gif"] = []byte("gif")

	cfg := testConfig(t, srv.URL(), 1, 1)
	// a directory where the log file should be makes every open fail
	require.NoError(t, os.MkdirAll(cfg.HyperlinkPath(), 0755))

	log := logger.NewTestLogger()
	c := NewFromConfig(cfg, log, nil)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Threads)
	assert.Equal(t, 0, sum.ThreadsFailed)
	assert.Equal(t, 1, sum.MediaWritten)
	assert.True(t, log.HasMessage("Failed to record hyperlinks"))
}

func TestRunSkipsPostsWithoutID(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[1] = listing("t1")
	srv.threads["t1"] = thread("t1",
		`<article class="post"><div class="post_wrapper"><div class="text"><a href="https://example.com/orphan">x</a></div></div></article>`,
		`<article class="backlink_container" id="bl"><div class="post_wrapper"><div class="text"><a href="https://example.com/bl">x</a></div></div></article>`)

	cfg := testConfig(t, srv.URL(), 1, 1)
	log := logger.NewTestLogger()
	c := NewFromConfig(cfg, log, nil)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Posts)
	assert.Equal(t, 0, sum.Hyperlinks)
	assert.NoFileExists(t, cfg.HyperlinkPath())
	assert.True(t, log.HasMessage("Attempted to read an article with a missing ID"))
}

func TestRunSkipsPostsWithUnsafeIDs(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[1] = listing("t1", "../escaped")
	srv.threads["t1"] = thread("t1",
		mediaPost("/../../../x", srv.URL()+"/media/a.png", "a.png", "https://example.com/a"),
		mediaPost("p2", srv.URL()+"/media/a.png", "a.png"))
	srv.media["a.png"] = []byte("owned")

	root := t.TempDir()
	cfg := testConfig(t, srv.URL(), 1, 1)
	cfg.Output.DataDirectory = filepath.Join(root, "data")
	log := logger.NewTestLogger()
	c := NewFromConfig(cfg, log, nil)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Threads, "the unsafe thread id is dropped from the listing")
	assert.Equal(t, 0, sum.ThreadsFailed)
	assert.Equal(t, 1, sum.Posts)
	assert.Equal(t, 1, sum.MediaWritten)
	assert.Equal(t, 0, sum.Hyperlinks)
	assert.True(t, log.HasMessage("Skipping article with an unusable ID"))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data", entries[0].Name())
	assert.FileExists(t, filepath.Join(root, "data", "t1", "t1-p2-.png"))
	assert.NoFileExists(t, filepath.Join(root, "x-.png"))
}

func TestRunHonoursCancellation(t *testing.T) {
	srv := newMockArchiveServer(t)
	cfg := testConfig(t, srv.URL(), 1, 5)
	c := NewFromConfig(cfg, logger.NewNopLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sum.Pages+sum.PagesFailed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&srv.pageCalls))
}

func TestRunRecordsMetrics(t *testing.T) {
	srv := newMockArchiveServer(t)
	srv.listings[1] = listing("t1")
	srv.threads["t1"] = thread("t1", mediaPost("p1", srv.URL()+"/media/a.png", "a.png", "https://example.com/a"))
	srv.media["a.png"] = []byte("abcd")

	cfg := testConfig(t, srv.URL(), 1, 1)
	m := metrics.New()
	c := NewFromConfig(cfg, logger.NewNopLogger(), m)

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestRunIDIsGenerated(t *testing.T) {
	a := New(Options{Logger: logger.NewNopLogger()})
	b := New(Options{Logger: logger.NewNopLogger()})
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())

	fixed := New(Options{Logger: logger.NewNopLogger(), RunID: "run-1"})
	assert.Equal(t, "run-1", fixed.RunID())
}
