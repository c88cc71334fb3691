package event

import (
	"sync"

	"github.com/dormitory/backend/internal/domain/shared"
)

// allEvents is the registry key of handlers subscribed to every event type
const allEvents = "*"

// HandlerRegistry maps event types to their handlers in subscription order
type HandlerRegistry struct {
	mu     sync.RWMutex
	byType map[string][]shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byType: make(map[string][]shared.EventHandler)}
}

// Register adds handler for eventTypes, or for every type when none are given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		eventTypes = []string{allEvents}
	}
	for _, t := range eventTypes {
		r.byType[t] = append(r.byType[t], handler)
	}
}

// Unregister removes handler from every event type
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for t, handlers := range r.byType {
		kept := handlers[:0:0]
		for _, h := range handlers {
			if h != handler {
				kept = append(kept, h)
			}
		}
		if len(kept) == 0 {
			delete(r.byType, t)
		} else {
			r.byType[t] = kept
		}
	}
}

// GetHandlers returns the handlers for eventType followed by the catch-all handlers
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specific := r.byType[eventType]
	catchAll := r.byType[allEvents]
	out := make([]shared.EventHandler, 0, len(specific)+len(catchAll))
	out = append(out, specific...)
	return append(out, catchAll...)
}
