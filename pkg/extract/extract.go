// Package extract reads thread listings and posts out of archive HTML.
//
// The archive markup is unversioned, so every lookup returns a found flag
// instead of an error: a post with an unexpected shape simply has no media
// or no links.
package extract

import (
	"fmt"
	"io"
	"strings"

	"archivescraper/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

// Class names used by the archive's post markup
const (
	classHasImage          = "has_image"
	classPostWrapper       = "post_wrapper"
	classPostFile          = "post_file"
	classPostFileFilename  = "post_file_filename"
	classText              = "text"
	classBacklink          = "backlink"
	classOriginalPost      = "post_is_op"
	classBacklinkContainer = "backlink_container"
)

// PostNode pairs a post's identity with its element
type PostNode struct {
	models.Post
	Selection *goquery.Selection
}

// Extractor pulls thread ids, media and hyperlinks out of parsed documents
type Extractor struct {
	banned Denylist
}

// New creates an Extractor that drops hyperlinks matching banned
func New(banned []string) *Extractor {
	return &Extractor{banned: NewDenylist(banned)}
}

// ParseDocument parses an HTML response body
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ThreadIDs returns the id of every article in document order. Articles
// without an id, or with one that is not a safe path segment, are dropped;
// repeats are kept.
func (e *Extractor) ThreadIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok && models.SafeSegment(id) {
			ids = append(ids, id)
		}
	})
	return ids
}

// Posts returns every article of a thread page in document order
func (e *Extractor) Posts(doc *goquery.Document) []PostNode {
	var posts []PostNode
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		posts = append(posts, PostNode{
			Post: models.Post{
				ID:                  id,
				HasID:               ok && id != "",
				IsOriginalPost:      s.HasClass(classOriginalPost),
				IsBacklinkContainer: s.HasClass(classBacklinkContainer),
			},
			Selection: s,
		})
	})
	return posts
}

// Media returns the attachment of a post. Only posts marked has_image are
// considered, and the filename link must sit at
// post_wrapper > post_file > post_file_filename.
func (e *Extractor) Media(post *goquery.Selection) (models.MediaReference, bool) {
	if !post.HasClass(classHasImage) {
		return models.MediaReference{}, false
	}

	filename, ok := childPath(post, classPostWrapper, classPostFile, classPostFileFilename)
	if !ok {
		return models.MediaReference{}, false
	}

	url, ok := filename.Attr("href")
	if !ok {
		return models.MediaReference{}, false
	}
	name, ok := filename.Attr("title")
	if !ok {
		return models.MediaReference{}, false
	}

	ext, ok := extension(name)
	if !ok {
		return models.MediaReference{}, false
	}
	return models.MediaReference{URL: url, Extension: ext}, true
}

// Hyperlinks returns the outbound links written in a post's text. The
// result is non-nil whenever the text container exists, even if every link
// was filtered out; ok is false only when the container is missing.
func (e *Extractor) Hyperlinks(post *goquery.Selection) ([]string, bool) {
	text, ok := childPath(post, classPostWrapper, classText)
	if !ok {
		return nil, false
	}

	links := []string{}
	text.Children().Each(func(_ int, child *goquery.Selection) {
		if child.HasClass(classBacklink) {
			return
		}
		href, ok := child.Attr("href")
		// a line break would split the entry in the hyperlink log
		if !ok || strings.ContainsAny(href, "\r\n") || e.banned.Blocks(href) {
			return
		}
		links = append(links, href)
	})
	return links, true
}

// childPath follows direct children carrying each class in turn, taking the
// first match at every step.
func childPath(s *goquery.Selection, classes ...string) (*goquery.Selection, bool) {
	for _, class := range classes {
		s = s.ChildrenFiltered("." + class).First()
		if s.Length() == 0 {
			return nil, false
		}
	}
	return s, true
}

// extension returns the text after the last "." of name. An extension that
// could not be used as part of a file name counts as none.
func extension(name string) (string, bool) {
	dot := strings.LastIndex(name, ".")
	if dot < 0 || dot == len(name)-1 || !models.SafeSegment(name[dot+1:]) {
		return "", false
	}
	return name[dot+1:], true
}
