// Package grok implements videogen.Generator against the x.ai-style
// chat-completions endpoint. The API returns the video URL buried in a
// streamed assistant message rather than a dedicated field, so the client
// reads the event stream incrementally and bails out the moment a URL can
// be extracted.
package grok

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/user/reelbot/pkg/videogen"
	"github.com/user/reelbot/pkg/videogen/extract"
)

const (
	completionsPath  = "/v1/chat/completions"
	streamDoneMarker = "[DONE]"
	errSnippetLimit  = 400
)

// Client implements the videogen.Generator interface.
type Client struct {
	config     *videogen.Config
	httpClient *http.Client
}

// New creates a client with the configured read timeout. The timeout covers
// the whole generation call including stream reading.
func New(config *videogen.Config) *Client {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// chatRequest is the upstream request body. Content parts follow the
// multi-modal message format: one text part plus one embedded image.
type chatRequest struct {
	Model    string           `json:"model"`
	Messages []requestMessage `json:"messages"`
	Stream   bool             `json:"stream"`
}

type requestMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

// StatusError reports a non-200 upstream status. It is terminal for the
// attempt and is not retried.
type StatusError struct {
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed (status %d): %s", e.StatusCode, e.Snippet)
}

// Generate opens a streaming completion request and returns the first valid
// video URL extracted from the response.
func (c *Client) Generate(ctx context.Context, req *videogen.Request) (string, error) {
	if c.config.APIKey == "" {
		return "", videogen.ErrNoAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []requestMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageRef{URL: req.ImageDataURI}},
			},
		}},
		Stream: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + completionsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("request timed out after %d seconds: %w", c.config.TimeoutSeconds, err)
		}
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return "", videogen.ErrAccessDenied
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errSnippetLimit))
		return "", &StatusError{StatusCode: resp.StatusCode, Snippet: string(snippet)}
	}

	videoURL, err := c.readStream(resp.Body)
	if err != nil && isTimeout(err) {
		return "", fmt.Errorf("request timed out after %d seconds: %w", c.config.TimeoutSeconds, err)
	}
	return videoURL, err
}

// readStream consumes data: frames line by line, accumulating message text
// and attempting extraction after every frame. It returns as soon as a valid
// URL appears; waiting for [DONE] is only the fallback.
func (c *Client) readStream(body io.Reader) (string, error) {
	var accumulated strings.Builder
	var raw strings.Builder
	sawFrame := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			// Kept for the non-streaming fallback below.
			raw.WriteString(line)
			raw.WriteString("\n")
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == streamDoneMarker {
			break
		}

		var chunk videogen.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Malformed frames are skipped, never abort the stream.
			slog.Debug("skipping malformed stream frame", "error", err)
			continue
		}
		sawFrame = true
		accumulated.WriteString(chunkContent(&chunk))

		if url, ok := extract.FromChunk(&chunk); ok {
			slog.Info("extracted video URL from structured frame", "url", url)
			return url, nil
		}
		if url, ok := extract.FromText(accumulated.String()); ok {
			slog.Info("extracted video URL mid-stream", "url", url)
			return url, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}

	// Non-streaming fallback: some deployments answer with a single JSON
	// completion object instead of an event stream.
	if !sawFrame && raw.Len() > 0 {
		var chunk videogen.StreamChunk
		if err := json.Unmarshal([]byte(raw.String()), &chunk); err == nil {
			if url, ok := extract.FromChunk(&chunk); ok {
				return url, nil
			}
			accumulated.WriteString(chunkContent(&chunk))
		}
	}

	if url, ok := extract.FromText(accumulated.String()); ok {
		return url, nil
	}
	slog.Debug("stream ended without extractable URL", "accumulated_chars", accumulated.Len())
	return "", videogen.ErrNoVideoURL
}

// chunkContent pulls incremental or complete text out of the first choice.
func chunkContent(chunk *videogen.StreamChunk) string {
	if len(chunk.Choices) == 0 {
		return ""
	}
	c0 := chunk.Choices[0]
	if c0.Delta != nil && c0.Delta.Content != "" {
		return c0.Delta.Content
	}
	if c0.Message != nil && c0.Message.Content != "" {
		return c0.Message.Content
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	// http.Client timeouts surface as url.Error with a timeout flag that
	// os.IsTimeout already covers; string match stays as a net for wrapped
	// transport errors.
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
