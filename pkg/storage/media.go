package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/models"
)

// MediaKey identifies one media file on disk. Suffix disambiguates several
// files for the same post and is empty for the first.
type MediaKey struct {
	ThreadID string
	PostID   string
	Suffix   string
}

// MediaStore writes media under <dataDir>/<thread>/<thread>-<post>-<suffix>.<ext>.
// A file already present at that path is never rewritten.
type MediaStore struct {
	dataDir string
}

// NewMediaStore creates a store rooted at dataDir
func NewMediaStore(dataDir string) *MediaStore {
	return &MediaStore{dataDir: dataDir}
}

var errUnsafeKey = errors.New("media key would leave the data directory")

// Path returns where the media for key is stored. Ids and the extension must
// each be a single safe path segment and the result must stay under the data
// directory; otherwise a filesystem error is returned.
func (m *MediaStore) Path(key MediaKey, ref models.MediaReference) (string, error) {
	name := fmt.Sprintf("%s-%s-%s.%s", key.ThreadID, key.PostID, key.Suffix, ref.Extension)
	path := filepath.Join(m.dataDir, key.ThreadID, name)

	unsafe := !models.SafeSegment(key.ThreadID) ||
		!models.SafeSegment(key.PostID) ||
		!models.SafeSegment(ref.Extension) ||
		(key.Suffix != "" && !models.SafeSegment(key.Suffix))
	if unsafe || !within(m.dataDir, path) {
		return "", errs.Filesystem(path, "refusing media path", errUnsafeKey)
	}
	return path, nil
}

// within reports whether path is root or lies beneath it
func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsStored reports whether the media for key already exists
func (m *MediaStore) IsStored(key MediaKey, ref models.MediaReference) bool {
	path, err := m.Path(key, ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Store writes data for key unless a file already exists there. written is
// false when the existing file was kept.
func (m *MediaStore) Store(key MediaKey, ref models.MediaReference, data []byte) (written bool, err error) {
	path, err := m.Path(key, ref)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errs.Filesystem(dir, "failed to create media directory", err)
	}

	if err := writeAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes to a temporary sibling and renames it into place so a
// partially written file is never mistaken for a stored one.
func writeAtomic(path string, data []byte) error {
	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.Filesystem(path, "failed to create temporary file", err)
	}
	tempFile := out.Name()

	_, err = out.Write(data)
	closeErr := out.Close()

	if err != nil {
		_ = os.Remove(tempFile)
		return errs.Filesystem(path, "failed to write media", err)
	}
	if closeErr != nil {
		_ = os.Remove(tempFile)
		return errs.Filesystem(path, "failed to close media file", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		_ = os.Remove(tempFile)
		return errs.Filesystem(path, "failed to set media permissions", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return errs.Filesystem(path, "failed to rename temporary file", err)
	}
	return nil
}
