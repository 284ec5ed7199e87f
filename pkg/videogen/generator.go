package videogen

import (
	"context"
	"errors"
)

// Generator defines the interface for generative-video backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Generator interface {
	// Generate submits a prompt plus source image and returns the URL of the
	// resulting video.
	Generate(ctx context.Context, req *Request) (string, error)
}

// Config holds common configuration for video generators.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// Classification sentinels. The gateway and retry policy match on these
// with errors.Is; everything else is treated as a transport failure.
var (
	// ErrNoAPIKey means generation was aborted before any network call.
	ErrNoAPIKey = errors.New("API key is not configured")

	// ErrAccessDenied is returned for an upstream 403.
	ErrAccessDenied = errors.New("API access denied, check key and permissions")

	// ErrNoVideoURL means the stream completed but no valid video URL could
	// be extracted. Distinct from transport failures.
	ErrNoVideoURL = errors.New("response contained no extractable video URL")
)
