package plugin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/registry"
)

// PluginError records one plugin whose activation or deactivation failed.
type PluginError struct {
	PluginID string
	Err      error
}

// ActivationResult aggregates a best-effort activate/deactivate pass.
type ActivationResult struct {
	Succeeded []string
	Failed    []PluginError
}

// System is the plugin runtime facade the daemon talks to. It owns the
// loader, the lifecycle manager and the event-hook subscriptions, all backed
// by one registry and one shared event bus.
type System struct {
	registry  *registry.Registry
	lifecycle *Lifecycle
	loader    *Loader
	bus       *events.Bus
	logger    *slog.Logger

	mu     sync.Mutex
	unsubs map[string][]func() // retained unsubscribe closures per plugin
}

// NewSystem wires a plugin system around the shared event bus. newContext is
// called once per plugin to build its server context.
func NewSystem(reg *registry.Registry, bus *events.Bus, newContext ContextFactory, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		registry:  reg,
		lifecycle: NewLifecycle(reg, logger),
		loader:    NewLoader(reg, newContext, logger),
		bus:       bus,
		logger:    logger,
		unsubs:    make(map[string][]func()),
	}
}

// Load instantiates and registers the descriptor table. Load failures are
// isolated per plugin.
func (s *System) Load(descriptors []Descriptor) LoadResult {
	result, instances := s.loader.Load(descriptors)
	for id, inst := range instances {
		s.lifecycle.Track(id, inst)
	}
	return result
}

// Activate activates one plugin and subscribes its declared event handlers.
func (s *System) Activate(ctx context.Context, id string) error {
	if err := s.lifecycle.Activate(ctx, id); err != nil {
		return err
	}
	s.subscribeHooks(id)
	return nil
}

// ActivateAll activates every registered plugin in registration order,
// accumulating failures instead of aborting.
func (s *System) ActivateAll(ctx context.Context) ActivationResult {
	var result ActivationResult
	for _, id := range s.registry.Order() {
		if err := s.Activate(ctx, id); err != nil {
			s.logger.Error("plugin activation failed", "plugin", id, "error", err)
			result.Failed = append(result.Failed, PluginError{PluginID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// Deactivate tears down one plugin's event subscriptions and invokes its
// deactivation hook.
func (s *System) Deactivate(ctx context.Context, id string) error {
	s.unsubscribeHooks(id)
	return s.lifecycle.Deactivate(ctx, id)
}

// DeactivateAll deactivates plugins in reverse activation order (LIFO),
// accumulating failures instead of aborting.
func (s *System) DeactivateAll(ctx context.Context) ActivationResult {
	var result ActivationResult
	order := s.lifecycle.ActivationOrder()
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if err := s.Deactivate(ctx, id); err != nil {
			s.logger.Error("plugin deactivation failed", "plugin", id, "error", err)
			result.Failed = append(result.Failed, PluginError{PluginID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// Unregister fully removes a plugin: subscriptions, lifecycle tracking and
// every capability index entry it owns.
func (s *System) Unregister(id string) bool {
	s.unsubscribeHooks(id)
	s.lifecycle.Untrack(id)
	return s.registry.Unregister(id)
}

// IsActive reports whether the plugin is currently active.
func (s *System) IsActive(id string) bool {
	return s.lifecycle.IsActive(id)
}

// Registry exposes the capability registry for consumers such as the router
// merger.
func (s *System) Registry() *registry.Registry {
	return s.registry
}

// Lifecycle exposes the lifecycle manager.
func (s *System) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// subscribeHooks subscribes a plugin's declared event handlers to the bus and
// retains the unsubscribe closures for symmetric teardown.
func (s *System) subscribeHooks(id string) {
	inst, ok := s.lifecycle.Instance(id)
	if !ok {
		return
	}
	hooks, ok := inst.(EventHooks)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for t, h := range hooks.EventHandlers() {
		s.unsubs[id] = append(s.unsubs[id], s.bus.Subscribe(t, h))
	}
}

// unsubscribeHooks removes every bus subscription held for the plugin.
func (s *System) unsubscribeHooks(id string) {
	s.mu.Lock()
	unsubs := s.unsubs[id]
	delete(s.unsubs, id)
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
