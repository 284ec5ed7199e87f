package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// downloadTimeout is deliberately much longer than the generation call's
// read timeout: video files are large binary transfers.
const downloadTimeout = 300 * time.Second

// Fetcher downloads resolved video URLs into a VideoStore.
type Fetcher struct {
	store  *VideoStore
	client *http.Client
}

// NewFetcher creates a fetcher writing into the given store.
func NewFetcher(store *VideoStore) *Fetcher {
	return &Fetcher{
		store:  store,
		client: &http.Client{Timeout: downloadTimeout},
	}
}

// Download fetches the URL and writes it to a uniquely named file, returning
// the absolute path. Callers treat failure as non-fatal: the remote URL is
// still usable on its own.
func (f *Fetcher) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download video: status %d", resp.StatusCode)
	}

	path := f.store.NewFilePath()
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create video file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write video file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close video file: %w", err)
	}
	return path, nil
}
