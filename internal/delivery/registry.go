package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/user/reelbot/internal/types"
)

// Handler delivers a finished generation to the chat identified by key.
// Exactly one of artifact and note is meaningful: artifact carries a video
// result, note carries user-facing failure or warning text.
type Handler func(ctx context.Context, key types.ChatKey, artifact *types.Artifact, note string) error

// Registry routes results to the appropriate delivery handler based on chat
// key prefix (e.g. "telegram:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for chat keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the chat key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(ctx context.Context, key types.ChatKey, artifact *types.Artifact, note string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(key), prefix) {
			return handler(ctx, key, artifact, note)
		}
	}
	return fmt.Errorf("no delivery handler for chat key: %s", key)
}
