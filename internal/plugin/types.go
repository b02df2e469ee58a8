// Package plugin hosts the daemon's plugin runtime: a compile-time descriptor
// table of plugin factories, the loader that instantiates them against
// per-plugin contexts, the activation lifecycle, and the system facade that
// orchestrates loading, registration, activation and event-hook wiring.
package plugin

import (
	"context"
	"log/slog"

	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/registry"
)

// KV is the namespaced key/value store a plugin sees. Each plugin's view is
// isolated to its own plugin id.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Context is the per-plugin server context a factory receives: storage
// scoped to the plugin, an event emitter bound to the plugin's id and a
// logger tagged with it.
type Context struct {
	PluginID string
	Storage  KV
	Events   *events.ScopedEmitter
	Logger   *slog.Logger
}

// Instance is a loaded plugin module.
type Instance interface {
	Manifest() registry.Manifest
}

// Activator is implemented by plugins with an activation hook.
type Activator interface {
	OnActivate(ctx context.Context) error
}

// Deactivator is implemented by plugins with a deactivation hook.
type Deactivator interface {
	OnDeactivate(ctx context.Context) error
}

// EventHooks is implemented by plugins that handle domain events. The system
// subscribes the returned handlers after activation and tears them down
// symmetrically on deactivation.
type EventHooks interface {
	EventHandlers() map[events.Type]events.Handler
}

// Factory builds a plugin instance against its server context.
type Factory func(pctx *Context) (Instance, error)

// Descriptor is one row of the compile-time plugin table. There is no dynamic
// code loading; the hosted plugin set is fixed at build time.
type Descriptor struct {
	ID      string
	Factory Factory
}

// ContextFactory builds the server context for one plugin id.
type ContextFactory func(pluginID string) (*Context, error)
