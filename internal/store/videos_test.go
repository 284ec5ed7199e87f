package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewFilePathUnique(t *testing.T) {
	store, err := NewVideoStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		path := store.NewFilePath()
		if !filepath.IsAbs(path) {
			t.Fatalf("expected absolute path, got %q", path)
		}
		if !strings.HasSuffix(path, ".mp4") {
			t.Fatalf("expected .mp4 suffix, got %q", path)
		}
		if seen[path] {
			t.Fatalf("duplicate path: %s", path)
		}
		seen[path] = true
	}
}

func TestRemove(t *testing.T) {
	store, err := NewVideoStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path := store.NewFilePath()
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone after Remove")
	}

	// Removing a missing file is not an error.
	if err := store.Remove(path); err != nil {
		t.Errorf("removing a missing file should not fail: %v", err)
	}
	if err := store.Remove(""); err != nil {
		t.Errorf("removing an empty path should not fail: %v", err)
	}
}

func TestList(t *testing.T) {
	store, err := NewVideoStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(store.NewFilePath(), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-video files are ignored.
	if err := os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 {
		t.Errorf("expected 3 videos, got %d", len(names))
	}
}

func TestSweepOlderThan(t *testing.T) {
	store, err := NewVideoStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	old := store.NewFilePath()
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	fresh := store.NewFilePath()
	if err := os.WriteFile(fresh, []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}

	removed, err := store.SweepOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 swept file, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old file should have been swept")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file should survive the sweep")
	}
}
