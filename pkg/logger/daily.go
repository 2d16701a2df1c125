package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilePrefix is the base name of the daily log files
const FilePrefix = "archive_scraper.log"

// dailyFile appends to <dir>/archive_scraper.log.<YYYY-MM-DD>, switching to a
// new file when the local date changes.
type dailyFile struct {
	mu   sync.Mutex
	dir  string
	now  func() time.Time
	day  string
	file *os.File
}

func newDailyFile(dir string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	d := &dailyFile{dir: dir, now: now}
	if err := d.rotate(now().Format("2006-01-02")); err != nil {
		return nil, err
	}
	return d, nil
}

// DailyFileName returns the log file name used for the given day
func DailyFileName(t time.Time) string {
	return FilePrefix + "." + t.Format("2006-01-02")
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := d.now().Format("2006-01-02"); day != d.day {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// rotate must be called with mu held (or before the writer is shared)
func (d *dailyFile) rotate(day string) error {
	path := filepath.Join(d.dir, FilePrefix+"."+day)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = f
	d.day = day
	return nil
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
