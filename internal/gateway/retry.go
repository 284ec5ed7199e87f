package gateway

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/user/reelbot/pkg/videogen"
	"github.com/user/reelbot/pkg/videogen/grok"
)

// RetryPolicy retries failed generation attempts with a fixed short delay.
// Timeouts and other transport failures are retried identically; they are
// distinguished only in the log line.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy returns the production policy: 3 attempts, 1s delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		Delay:       1 * time.Second,
		Sleep:       time.Sleep,
	}
}

// Execute runs fn up to MaxAttempts times. Terminal classifications (missing
// key, access denied, extraction miss, upstream error status) return
// immediately; the last attempt's error is surfaced verbatim.
func (p *RetryPolicy) Execute(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isTerminal(err) {
			return err
		}
		slog.Warn("generation attempt failed",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"timeout", isTimeoutErr(err),
			"error", err)
		if attempt < p.MaxAttempts {
			p.Sleep(p.Delay)
		}
	}
	return lastErr
}

// isTerminal reports whether retrying cannot help: the upstream answered
// conclusively, so only transport-level failures remain retryable.
func isTerminal(err error) bool {
	if errors.Is(err, videogen.ErrNoAPIKey) ||
		errors.Is(err, videogen.ErrAccessDenied) ||
		errors.Is(err, videogen.ErrNoVideoURL) {
		return true
	}
	var statusErr *grok.StatusError
	return errors.As(err, &statusErr)
}

func isTimeoutErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout")
}
