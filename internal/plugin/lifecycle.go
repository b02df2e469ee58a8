package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inkwell-notes/inkwell/internal/registry"
)

// Lifecycle owns the per-plugin activation state machine:
// registered -> active <-> inactive, with error reachable from any
// transition whose hook fails.
type Lifecycle struct {
	registry *registry.Registry
	logger   *slog.Logger

	mu        sync.Mutex
	instances map[string]Instance
	activated []string // activation order; shutdown walks it backwards
}

// NewLifecycle creates a lifecycle manager bound to the registry.
func NewLifecycle(reg *registry.Registry, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		registry:  reg,
		logger:    logger,
		instances: make(map[string]Instance),
	}
}

// Track associates a loaded instance with its id so hooks can be invoked.
func (l *Lifecycle) Track(id string, inst Instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instances[id] = inst
}

// Untrack drops a plugin from the lifecycle's bookkeeping.
func (l *Lifecycle) Untrack(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.instances, id)
	l.removeActivated(id)
}

// Activate invokes the plugin's optional OnActivate hook and flips its status
// to active. A failing hook sets the status to error and returns the failure;
// the caller decides whether to continue with other plugins.
func (l *Lifecycle) Activate(ctx context.Context, id string) error {
	l.mu.Lock()
	inst, ok := l.instances[id]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrPluginNotFound, id)
	}

	if a, hasHook := inst.(Activator); hasHook {
		if err := a.OnActivate(ctx); err != nil {
			wrapped := fmt.Errorf("activate %s: %w", id, err)
			if serr := l.registry.UpdateStatus(id, registry.StatusError, wrapped); serr != nil {
				l.logger.Error("status update failed", "plugin", id, "error", serr)
			}
			return wrapped
		}
	}

	if err := l.registry.UpdateStatus(id, registry.StatusActive, nil); err != nil {
		return err
	}

	l.mu.Lock()
	l.removeActivated(id)
	l.activated = append(l.activated, id)
	l.mu.Unlock()

	l.logger.Info("plugin activated", "plugin", id)
	return nil
}

// Deactivate invokes the plugin's optional OnDeactivate hook and flips its
// status to inactive. A failing hook sets the status to error.
func (l *Lifecycle) Deactivate(ctx context.Context, id string) error {
	l.mu.Lock()
	inst, ok := l.instances[id]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrPluginNotFound, id)
	}

	if d, hasHook := inst.(Deactivator); hasHook {
		if err := d.OnDeactivate(ctx); err != nil {
			wrapped := fmt.Errorf("deactivate %s: %w", id, err)
			if serr := l.registry.UpdateStatus(id, registry.StatusError, wrapped); serr != nil {
				l.logger.Error("status update failed", "plugin", id, "error", serr)
			}
			return wrapped
		}
	}

	if err := l.registry.UpdateStatus(id, registry.StatusInactive, nil); err != nil {
		return err
	}

	l.mu.Lock()
	l.removeActivated(id)
	l.mu.Unlock()

	l.logger.Info("plugin deactivated", "plugin", id)
	return nil
}

// IsActive reports whether the plugin is currently active. Other components
// (event subscription, router merging) consult this to decide whether a
// plugin's contributions are live.
func (l *Lifecycle) IsActive(id string) bool {
	p, ok := l.registry.Plugin(id)
	return ok && p.Status == registry.StatusActive
}

// ActivationOrder returns plugin ids in the order they were activated.
func (l *Lifecycle) ActivationOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.activated))
	copy(out, l.activated)
	return out
}

// Instance returns the tracked instance for id.
func (l *Lifecycle) Instance(id string) (Instance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.instances[id]
	return inst, ok
}

// removeActivated removes id from the activation order. Caller holds l.mu.
func (l *Lifecycle) removeActivated(id string) {
	for i, v := range l.activated {
		if v == id {
			l.activated = append(l.activated[:i:i], l.activated[i+1:]...)
			return
		}
	}
}
