package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
)

// OpenFunc opens the hyperlink log for appending
type OpenFunc func(path string) (io.WriteCloser, error)

func openAppend(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// HyperlinkLog appends "<thread_id>-<post_id>: <url>" lines to a shared file
type HyperlinkLog struct {
	path string
	open OpenFunc
	log  logger.Logger
	mu   sync.Mutex
}

// NewHyperlinkLog creates a log writing to path
func NewHyperlinkLog(path string, log logger.Logger) *HyperlinkLog {
	return &HyperlinkLog{path: path, open: openAppend, log: log}
}

// WithOpener replaces how the file is opened, for tests
func (h *HyperlinkLog) WithOpener(open OpenFunc) *HyperlinkLog {
	h.open = open
	return h
}

// Append writes one line per link and returns how many were written. A line
// that fails to write is logged and skipped; only failing to open the file
// is returned as an error.
func (h *HyperlinkLog) Append(threadID, postID string, links []string) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errs.Filesystem(dir, "failed to create hyperlink directory", err)
	}

	w, err := h.open(h.path)
	if err != nil {
		return 0, errs.Filesystem(h.path, "failed to open hyperlink log", err)
	}
	defer w.Close()

	written := 0
	for _, link := range links {
		entry := models.HyperlinkEntry{ThreadID: threadID, PostID: postID, URL: link}
		if _, err := fmt.Fprintln(w, entry.String()); err != nil {
			h.log.WithError(err).ErrorWithFields("Failed to write hyperlink", map[string]interface{}{
				"thread_id": threadID,
				"post_id":   postID,
				"url":       link,
			})
			continue
		}
		written++
	}
	return written, nil
}
