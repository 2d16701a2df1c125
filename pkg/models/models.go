package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafeSegment reports whether s can name a single file or directory inside
// the data directory. Ids and extensions come from remote markup, so anything
// with a separator, a ".." or a line break is refused.
func SafeSegment(s string) bool {
	return s != "" && s != "." &&
		filepath.IsLocal(s) &&
		!strings.ContainsAny(s, "/\\\r\n") &&
		!strings.Contains(s, "..")
}

// MediaReference points at the single attachment of a post
type MediaReference struct {
	URL       string
	Extension string
}

// Post is one reply inside a thread as seen by the crawler
type Post struct {
	ID                  string
	HasID               bool
	IsOriginalPost      bool
	IsBacklinkContainer bool
}

// Skippable reports whether the crawler ignores this post entirely
func (p Post) Skippable() bool {
	return p.IsOriginalPost || p.IsBacklinkContainer
}

// HyperlinkEntry is one line of the shared hyperlink log
type HyperlinkEntry struct {
	ThreadID string
	PostID   string
	URL      string
}

// String renders the entry as "<thread_id>-<post_id>: <url>"
func (e HyperlinkEntry) String() string {
	return fmt.Sprintf("%s-%s: %s", e.ThreadID, e.PostID, e.URL)
}

// ListEntry is a media download request read back from a hyperlink log
type ListEntry struct {
	ThreadID string
	PostID   string
	Media    MediaReference
}

// ParseListEntry parses a "<thread_id>-<post_id>: <url>" line. The media
// extension is the URL's last "."-segment. ok is false for lines that do not
// have that shape or whose ids or extension are not SafeSegment.
func ParseListEntry(line string) (ListEntry, bool) {
	key, url, found := strings.Cut(strings.TrimSpace(line), ": ")
	if !found || url == "" {
		return ListEntry{}, false
	}

	threadID, postID, found := strings.Cut(key, "-")
	if !found || !SafeSegment(threadID) || !SafeSegment(postID) {
		return ListEntry{}, false
	}

	dot := strings.LastIndex(url, ".")
	if dot < 0 || dot == len(url)-1 || !SafeSegment(url[dot+1:]) {
		return ListEntry{}, false
	}

	return ListEntry{
		ThreadID: threadID,
		PostID:   postID,
		Media: MediaReference{
			URL:       url,
			Extension: url[dot+1:],
		},
	}, true
}
