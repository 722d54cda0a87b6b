package events

import (
	"context"
	"sync"
)

// Handler handles a published audit event.
type Handler func(context.Context, Event) error

// AuditSink receives lifecycle audit events. Emit is fire-and-forget from
// the caller's perspective: handler failures are the sink's problem and
// never propagate into lifecycle operations.
type AuditSink interface {
	Emit(ctx context.Context, event Event)
	Subscribe(kind Kind, handler Handler)
}

// inMemorySink is a simple synchronous dispatcher.
type inMemorySink struct {
	mu        sync.RWMutex
	listeners map[Kind][]Handler
}

// NewInMemorySink creates a sink instance.
func NewInMemorySink() AuditSink {
	return &inMemorySink{
		listeners: make(map[Kind][]Handler),
	}
}

// Emit synchronously invokes handlers for the given event.
func (d *inMemorySink) Emit(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := append([]Handler{}, d.listeners[event.Kind]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		// continue processing other handlers despite errors
		_ = handler(ctx, event)
	}
}

// Subscribe registers a handler for the given event kind.
func (d *inMemorySink) Subscribe(kind Kind, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[kind] = append(d.listeners[kind], handler)
}
