package sweeper

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/reelbot/internal/store"
)

// Sweeper periodically deletes retained videos older than the configured
// retention. A zero retention disables sweeping entirely.
type Sweeper struct {
	store     *store.VideoStore
	retention time.Duration
	cron      *cron.Cron
}

// New creates a sweeper over the given store.
func New(videos *store.VideoStore, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     videos,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start registers the hourly sweep and starts the cron ticker.
func (s *Sweeper) Start() error {
	if s.retention <= 0 {
		slog.Info("video retention sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc("@hourly", s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("video retention sweep scheduled", "retention", s.retention)
	return nil
}

// Sweep runs one pass immediately.
func (s *Sweeper) Sweep() {
	removed, err := s.store.SweepOlderThan(s.retention)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("retention sweep removed files", "count", removed)
	}
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
