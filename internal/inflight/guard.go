// Package inflight enforces at most one in-progress generation per user.
package inflight

import (
	"sync"

	"github.com/user/reelbot/internal/types"
)

// Guard is a single-flight map keyed by user ID. Lock scope is coarse (one
// mutex for the whole map); contention is negligible at one entry per user
// and no I/O ever happens under the lock.
type Guard struct {
	mu    sync.Mutex
	tasks map[string]types.TaskID
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{tasks: make(map[string]types.TaskID)}
}

// TryAcquire registers a new task for the user. It fails when the user
// already has one in flight, whatever that task's identity.
func (g *Guard) TryAcquire(userID string) (types.TaskID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.tasks[userID]; busy {
		return "", false
	}
	id := types.NewTaskID()
	g.tasks[userID] = id
	return id, true
}

// Release removes the user's entry, but only if it still belongs to taskID.
// A stale release from an aborted task must not clobber a newer one.
func (g *Guard) Release(userID string, taskID types.TaskID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.tasks[userID]; ok && current == taskID {
		delete(g.tasks, userID)
	}
}

// Active reports whether the user has a task in flight.
func (g *Guard) Active(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.tasks[userID]
	return busy
}
