package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Handler delivers a message to a channel address such as
// "telegram:12345" or "whatsapp:5511999990000@c.us".
type Handler func(ctx context.Context, address, message string) error

// Registry routes messages to the appropriate delivery handler based on
// address prefix. It implements types.Sender.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for addresses starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// SetFallback sets the handler for addresses no prefix matches.
func (r *Registry) SetFallback(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

// Send finds the handler with the longest matching prefix and calls it.
// Returns an error if no handler matches.
func (r *Registry) Send(ctx context.Context, address, message string) error {
	r.mu.RLock()
	var (
		best    Handler
		bestLen = -1
	)
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(address, prefix) && len(prefix) > bestLen {
			best, bestLen = handler, len(prefix)
		}
	}
	if best == nil {
		best = r.fallback
	}
	r.mu.RUnlock()

	if best == nil {
		return fmt.Errorf("no delivery handler for address: %s", address)
	}
	return best(ctx, address, message)
}
