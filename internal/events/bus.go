// Package events provides the in-process publish-subscribe bus that connects
// core domain lifecycle events (note created/updated/deleted, vault
// opened/closed) to plugin event hooks.
//
// Handlers are invoked sequentially in subscription order, and handler
// failures are joined and returned to the caller that dispatched the event
// rather than being swallowed. Plugins publish through scoped emitters bound
// to their own plugin id so events always carry their source.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Type identifies a domain event. The set of types is closed; plugins
// subscribe to these, they do not define their own.
type Type string

const (
	NoteCreated Type = "note:created"
	NoteUpdated Type = "note:updated"
	NoteDeleted Type = "note:deleted"
	VaultOpened Type = "vault:opened"
	VaultClosed Type = "vault:closed"
)

// SourceCore marks events emitted by the daemon's own domain services.
const SourceCore = "core"

// Event is one domain event as delivered to handlers.
type Event struct {
	Type      Type
	NoteID    string
	Source    string // plugin id, or SourceCore
	Payload   any
	Timestamp time.Time
}

// Handler processes a single event. A handler may perform I/O; the bus awaits
// it before invoking the next handler.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is the shared event bus. One instance is owned by the daemon and passed
// into both the domain services and the plugin system.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Type][]subscription
	logger   *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Type][]subscription),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event type and returns a
// closure that removes exactly this handler. Unsubscribing twice is safe.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[t]
		for i, s := range subs {
			if s.id == id {
				b.handlers[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit dispatches the event to every subscribed handler, sequentially and in
// subscription order. All handler errors are joined and returned; a failing
// handler does not prevent later handlers from running.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[ev.Type]))
	copy(subs, b.handlers[ev.Type])
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.handler(ctx, ev); err != nil {
			b.logger.Warn("event handler failed",
				"event", string(ev.Type),
				"source", ev.Source,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("handler for %s: %w", ev.Type, err))
		}
	}
	return errors.Join(errs...)
}

// HandlerCount returns the number of handlers currently subscribed to t.
func (b *Bus) HandlerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// Emitter returns a publisher bound to the given source. Plugin contexts
// receive an emitter bound to their own plugin id, which keeps every
// plugin-originated event attributed to its publisher.
func (b *Bus) Emitter(source string) *ScopedEmitter {
	return &ScopedEmitter{bus: b, source: source}
}

// ScopedEmitter publishes events stamped with a fixed source.
type ScopedEmitter struct {
	bus    *Bus
	source string
}

// Emit publishes an event of the given type through the underlying bus.
func (e *ScopedEmitter) Emit(ctx context.Context, t Type, noteID string, payload any) error {
	return e.bus.Emit(ctx, Event{
		Type:      t,
		NoteID:    noteID,
		Source:    e.source,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// Source returns the source id this emitter stamps on events.
func (e *ScopedEmitter) Source() string {
	return e.source
}
