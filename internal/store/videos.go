package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoStore owns the local directory for downloaded artifacts. There is no
// index file; the files themselves are the only persisted state.
type VideoStore struct {
	dir string
}

// NewVideoStore creates the storage directory and returns a store rooted at
// its absolute path.
func NewVideoStore(dir string) (*VideoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create videos dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve videos dir: %w", err)
	}
	return &VideoStore{dir: abs}, nil
}

// Dir returns the absolute storage directory.
func (s *VideoStore) Dir() string {
	return s.dir
}

// NewFilePath returns a unique absolute path for a new download, named with
// a timestamp and a random suffix.
func (s *VideoStore) NewFilePath() string {
	name := fmt.Sprintf("video_%s_%s.mp4",
		time.Now().Format("20060102_150405"),
		strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return filepath.Join(s.dir, name)
}

// Remove deletes a downloaded file. A missing file is not an error.
func (s *VideoStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove video file: %w", err)
	}
	return nil
}

// List returns the names of all stored video files.
func (s *VideoStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read videos dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".mp4") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// SweepOlderThan deletes stored files whose modification time is older than
// the given age and returns how many were removed. Individual deletion
// failures are logged and skipped.
func (s *VideoStore) SweepOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read videos dir: %w", err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("sweep could not remove file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
