// Package ratelimit implements a fixed-window call counter per group chat.
// Only groups are limited; direct chats pass through untouched.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// entry is one group's window state. mu guards windowStart and count so that
// unrelated groups never contend with each other.
type entry struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// Limiter tracks per-group call counts in fixed time windows.
type Limiter struct {
	window   time.Duration
	maxCalls int
	now      func() time.Time

	// mu guards the entries map only. Entries are created lazily exactly
	// once per group and never removed while the limiter is in use.
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a limiter allowing maxCalls per group within each window.
func New(window time.Duration, maxCalls int) *Limiter {
	return &Limiter{
		window:   window,
		maxCalls: maxCalls,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Allow consumes one call from the group's current window. It returns true
// when the call may proceed; otherwise false plus a message naming the limit.
// An empty group ID identifies a direct chat and is always allowed.
func (l *Limiter) Allow(groupID string) (bool, string) {
	if groupID == "" {
		return true, ""
	}

	e := l.entry(groupID)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	if now.Sub(e.windowStart) >= l.window {
		e.windowStart = now
		e.count = 0
	}
	if e.count >= l.maxCalls {
		return false, fmt.Sprintf(
			"group limit reached (%d calls per %d seconds), try again later",
			l.maxCalls, int(l.window.Seconds()))
	}
	e.count++
	return true, ""
}

// entry returns the group's state, creating it atomically on first use so
// two concurrent callers can never end up with two different locks.
func (l *Limiter) entry(groupID string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[groupID]
	if !ok {
		e = &entry{windowStart: l.now()}
		l.entries[groupID] = e
	}
	return e
}
