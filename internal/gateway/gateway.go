// Package gateway orchestrates generation requests: access checks, rate
// limiting, the per-user single-flight guard, the bounded worker pool, and
// the single cleanup path every task funnels through.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/reelbot/internal/delivery"
	"github.com/user/reelbot/internal/inflight"
	"github.com/user/reelbot/internal/ratelimit"
	"github.com/user/reelbot/internal/store"
	"github.com/user/reelbot/internal/types"
	"github.com/user/reelbot/pkg/videogen"
)

// Group access modes.
const (
	GroupModeOff       = "off"
	GroupModeWhitelist = "whitelist"
	GroupModeBlacklist = "blacklist"
)

// ErrBusy means the user already has a generation in flight.
var ErrBusy = errors.New("a video generation is already in progress for you, wait for it to finish")

// ErrDisabled means video generation is switched off in the configuration.
var ErrDisabled = errors.New("video generation is disabled")

// Access rejection kinds.
const (
	AccessGroup  = "group"
	AccessRate   = "rate"
	AccessBudget = "budget"
)

// AccessError is a pre-flight rejection: group not permitted, rate limit
// exceeded, or prompt over budget. Never retried.
type AccessError struct {
	Kind   string
	Reason string
}

func (e *AccessError) Error() string { return e.Reason }

// Result is what a finished task delivers: an artifact on success, an error
// otherwise.
type Result struct {
	Artifact *types.Artifact
	Err      error
}

// Options configures a Gateway.
type Options struct {
	Enabled          bool
	MaxConcurrent    int64
	GroupMode        string
	GroupList        []string
	RateLimitEnabled bool
	RateWindow       time.Duration
	RateMaxCalls     int
	MaxPromptTokens  int
	Model            string
	Download         bool
	KeepLocal        bool
	Videos           *store.VideoStore
	Delivery         *delivery.Registry
}

// Gateway owns the full lifecycle of generation tasks.
type Gateway struct {
	gen      videogen.Generator
	limiter  *ratelimit.Limiter
	guard    *inflight.Guard
	fetcher  *store.Fetcher
	videos   *store.VideoStore
	registry *delivery.Registry
	retry    *RetryPolicy
	pool     *Pool

	countTokens func(string) int

	enabled         bool
	keepLocal       bool
	groupMode       string
	groupList       map[string]bool
	maxPromptTokens int
}

// New creates a Gateway around the given generator.
func New(gen videogen.Generator, opts Options) (*Gateway, error) {
	g := &Gateway{
		gen:             gen,
		guard:           inflight.NewGuard(),
		videos:          opts.Videos,
		registry:        opts.Delivery,
		retry:           DefaultRetryPolicy(),
		pool:            NewPool(opts.MaxConcurrent),
		enabled:         opts.Enabled,
		keepLocal:       opts.KeepLocal,
		groupMode:       opts.GroupMode,
		groupList:       make(map[string]bool, len(opts.GroupList)),
		maxPromptTokens: opts.MaxPromptTokens,
	}
	for _, id := range opts.GroupList {
		g.groupList[id] = true
	}
	if opts.RateLimitEnabled {
		g.limiter = ratelimit.New(opts.RateWindow, opts.RateMaxCalls)
	}
	if opts.Download && opts.Videos != nil {
		g.fetcher = store.NewFetcher(opts.Videos)
	}
	if opts.MaxPromptTokens > 0 {
		enc, err := tiktoken.EncodingForModel(opts.Model)
		if err != nil {
			// Fallback to cl100k_base for unknown models
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return nil, fmt.Errorf("get tokenizer: %w", err)
			}
		}
		g.countTokens = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	}
	return g, nil
}

// SetRetryAttempts overrides the retry policy's attempt count from config.
func (g *Gateway) SetRetryAttempts(attempts int) {
	if attempts >= 1 {
		g.retry.MaxAttempts = attempts
	}
}

// Start initialises the worker pool.
func (g *Gateway) Start(ctx context.Context) {
	g.pool.Start(ctx)
}

// Stop waits for outstanding tasks.
func (g *Gateway) Stop() {
	g.pool.Stop()
}

// SubmitOption configures optional behavior on a submission.
type SubmitOption func(*submission)

type submission struct {
	onResult func(*Result)
}

// WithOnResult sets a callback invoked with the task's result instead of the
// delivery registry.
func WithOnResult(fn func(*Result)) SubmitOption {
	return func(s *submission) { s.onResult = fn }
}

// Submit checks access and schedules the generation, returning immediately.
// A non-nil error is a synchronous rejection: ErrDisabled, ErrBusy, or an
// AccessError. Nothing upstream is contacted and no rate budget is consumed
// before all checks pass.
func (g *Gateway) Submit(ctx context.Context, req *types.GenerationRequest, opts ...SubmitOption) error {
	if !g.enabled {
		return ErrDisabled
	}
	if err := g.checkGroupAccess(req.GroupID); err != nil {
		return err
	}
	if g.countTokens != nil {
		if n := g.countTokens(req.Prompt); n > g.maxPromptTokens {
			return &AccessError{Kind: AccessBudget, Reason: fmt.Sprintf(
				"prompt is too long (%d tokens, limit %d)", n, g.maxPromptTokens)}
		}
	}
	if g.limiter != nil {
		if ok, msg := g.limiter.Allow(req.GroupID); !ok {
			return &AccessError{Kind: AccessRate, Reason: msg}
		}
	}

	taskID, ok := g.guard.TryAcquire(req.UserID)
	if !ok {
		return ErrBusy
	}

	var sub submission
	for _, opt := range opts {
		opt(&sub)
	}

	slog.Info("generation task queued",
		"task_id", taskID, "user_id", req.UserID, "group_id", req.GroupID)
	return g.pool.Submit(func(taskCtx context.Context) {
		g.run(taskCtx, req, taskID, sub.onResult)
	})
}

// checkGroupAccess applies the whitelist/blacklist mode. Direct chats carry
// no group ID and always pass.
func (g *Gateway) checkGroupAccess(groupID string) error {
	if groupID == "" {
		return nil
	}
	switch g.groupMode {
	case GroupModeWhitelist:
		if !g.groupList[groupID] {
			return &AccessError{Kind: AccessGroup, Reason: "this group is not authorized for video generation"}
		}
	case GroupModeBlacklist:
		if g.groupList[groupID] {
			return &AccessError{Kind: AccessGroup, Reason: "video generation is restricted in this group"}
		}
	}
	return nil
}

// run is the single task body: generate with retry, optionally download,
// deliver, clean up. The in-flight guard is released on every exit path.
func (g *Gateway) run(ctx context.Context, req *types.GenerationRequest, taskID types.TaskID, onResult func(*Result)) {
	defer g.guard.Release(req.UserID, taskID)

	if ctx.Err() != nil {
		slog.Warn("generation task canceled before start", "task_id", taskID, "user_id", req.UserID)
		return
	}

	var url string
	err := g.retry.Execute(func() error {
		var genErr error
		url, genErr = g.gen.Generate(ctx, &videogen.Request{
			Prompt:       req.Prompt,
			ImageDataURI: req.ImageDataURI,
		})
		return genErr
	})

	res := &Result{}
	if err != nil {
		res.Err = err
		slog.Error("generation failed", "task_id", taskID, "user_id", req.UserID, "error", err)
	} else {
		art := &types.Artifact{ID: types.NewArtifactID(), RemoteURL: url}
		if g.fetcher != nil {
			path, dlErr := g.fetcher.Download(ctx, url)
			if dlErr != nil {
				// Non-fatal: the remote URL is still deliverable.
				slog.Warn("video download failed, delivering remote URL",
					"task_id", taskID, "error", dlErr)
			} else {
				art.LocalPath = path
			}
		}
		res.Artifact = art
		slog.Info("generation succeeded", "task_id", taskID, "user_id", req.UserID, "url", url)
	}

	g.deliver(ctx, req.ChatKey, res, onResult)

	// Delete-after-send unless retention is configured. Failures are logged,
	// never surfaced.
	if res.Artifact != nil && res.Artifact.LocalPath != "" && !g.keepLocal && g.videos != nil {
		if err := g.videos.Remove(res.Artifact.LocalPath); err != nil {
			slog.Warn("cleanup of local video failed",
				"path", res.Artifact.LocalPath, "error", err)
		}
	}
}

func (g *Gateway) deliver(ctx context.Context, key types.ChatKey, res *Result, onResult func(*Result)) {
	if onResult != nil {
		onResult(res)
		return
	}
	if g.registry == nil {
		slog.Warn("no delivery path for result", "chat_key", key)
		return
	}
	note := ""
	if res.Err != nil {
		note = UserMessage(res.Err)
	}
	if err := g.registry.Deliver(ctx, key, res.Artifact, note); err != nil {
		slog.Error("result delivery failed", "chat_key", key, "error", err)
	}
}

// UserMessage converts an internal error into user-facing text. No raw
// error trace crosses the chat boundary except transport diagnostics, which
// the client already truncates.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, videogen.ErrNoAPIKey):
		return "API key is not configured"
	case errors.Is(err, videogen.ErrAccessDenied):
		return "API access denied, check key and permissions"
	case errors.Is(err, videogen.ErrNoVideoURL):
		return "the API returned no usable video, try again later"
	case errors.Is(err, ErrBusy):
		return ErrBusy.Error()
	case errors.Is(err, ErrDisabled):
		return ErrDisabled.Error()
	default:
		var accessErr *AccessError
		if errors.As(err, &accessErr) {
			return accessErr.Reason
		}
		return fmt.Sprintf("video generation failed: %v", err)
	}
}
