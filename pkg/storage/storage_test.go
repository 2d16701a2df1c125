package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var png = models.MediaReference{URL: "http://x/img.png", Extension: "png"}

func TestMediaStorePath(t *testing.T) {
	store := NewMediaStore("data")

	path, err := store.Path(MediaKey{ThreadID: "t1", PostID: "p1"}, png)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "t1", "t1-p1-.png"), path)

	path, err = store.Path(MediaKey{ThreadID: "t1", PostID: "p1", Suffix: "2"}, png)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "t1", "t1-p1-2.png"), path)
}

func TestMediaStoreRejectsEscapingKeys(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	store := NewMediaStore(dataDir)

	tests := []struct {
		name string
		key  MediaKey
		ref  models.MediaReference
	}{
		{"thread traversal", MediaKey{ThreadID: "../..", PostID: "p1"}, png},
		{"thread prefix traversal", MediaKey{ThreadID: "../../escaped", PostID: "p1"}, png},
		{"post traversal", MediaKey{ThreadID: "t1", PostID: "/../../../x"}, png},
		{"post separator", MediaKey{ThreadID: "t1", PostID: "a/b"}, png},
		{"extension traversal", MediaKey{ThreadID: "t1", PostID: "p1"},
			models.MediaReference{URL: "http://x/a", Extension: "/../../x"}},
		{"suffix traversal", MediaKey{ThreadID: "t1", PostID: "p1", Suffix: "/../.."}, png},
		{"empty thread", MediaKey{PostID: "p1"}, png},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Path(tt.key, tt.ref)
			require.Error(t, err)
			assert.Equal(t, errs.ErrorTypeFilesystem, errs.TypeOf(err))

			assert.False(t, store.IsStored(tt.key, tt.ref))

			written, err := store.Store(tt.key, tt.ref, []byte("owned"))
			assert.False(t, written)
			assert.Equal(t, errs.ErrorTypeFilesystem, errs.TypeOf(err))
		})
	}

	// nothing was written anywhere under the temp root
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMediaStoreIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := NewMediaStore(dir)
	key := MediaKey{ThreadID: "t1", PostID: "p1"}

	assert.False(t, store.IsStored(key, png))

	written, err := store.Store(key, png, []byte("first"))
	require.NoError(t, err)
	assert.True(t, written)

	path, err := store.Path(key, png)
	require.NoError(t, err)
	before, err := os.Stat(path)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	written, err = store.Store(key, png, []byte("second"))
	require.NoError(t, err)
	assert.False(t, written)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
	assert.True(t, store.IsStored(key, png))

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "t1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMediaStoreReportsPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

	store := NewMediaStore(blocker)
	_, err := store.Store(MediaKey{ThreadID: "t1", PostID: "p1"}, png, []byte("x"))

	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeFilesystem, errs.TypeOf(err))
	assert.Contains(t, err.Error(), filepath.Join(blocker, "t1"))
}

func TestHyperlinkLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "urls.txt")
	sink := NewHyperlinkLog(path, logger.NewNopLogger())

	n, err := sink.Append("t1", "p1", []string{"https://example.com/b"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sink.Append("t1", "p2", []string{"https://example.com/c", "https://example.com/d"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = sink.Append("t1", "p3", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"t1-p1: https://example.com/b",
		"t1-p2: https://example.com/c",
		"t1-p2: https://example.com/d",
		"",
	}, "\n"), string(content))
}

// flakyWriter fails the write with the given index
type flakyWriter struct {
	bytes.Buffer
	failAt int
	writes int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes == w.failAt {
		return 0, errors.New("no space left on device")
	}
	return w.Buffer.Write(p)
}

func (w *flakyWriter) Close() error { return nil }

func TestHyperlinkLogSkipsFailedLine(t *testing.T) {
	w := &flakyWriter{failAt: 2}
	log := logger.NewTestLogger()
	sink := NewHyperlinkLog(filepath.Join(t.TempDir(), "urls.txt"), log).
		WithOpener(func(string) (io.WriteCloser, error) { return w, nil })

	n, err := sink.Append("t1", "p1", []string{"https://a.example", "https://b.example", "https://c.example"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "t1-p1: https://a.example\nt1-p1: https://c.example\n", w.String())

	failures := log.GetMessagesByLevel("ERROR")
	require.Len(t, failures, 1)
	assert.Equal(t, "https://b.example", failures[0].Fields["url"])
}

func TestHyperlinkLogOpenFailure(t *testing.T) {
	sink := NewHyperlinkLog(filepath.Join(t.TempDir(), "urls.txt"), logger.NewNopLogger()).
		WithOpener(func(string) (io.WriteCloser, error) { return nil, os.ErrPermission })

	_, err := sink.Append("t1", "p1", []string{"https://a.example"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
}
