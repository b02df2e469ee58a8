// Package registry implements the in-memory capability registry: the index of
// loaded plugins and the typed extension points they claim.
//
// Plugin identity is a hard invariant: registering a second plugin with an
// already-known id fails outright and leaves the registry untouched.
// Capability slots are a shared, degradable resource: a capability whose
// conflict key is already claimed is skipped with a warning while the rest of
// the plugin's capabilities register normally (first-registered-wins).
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrDuplicatePlugin is returned when a plugin id is already registered.
	ErrDuplicatePlugin = errors.New("plugin id already registered")

	// ErrPluginNotFound is returned when a plugin id is not registered.
	ErrPluginNotFound = errors.New("plugin not found")
)

var validate = validator.New()

// Manifest is the static identity of a plugin. Immutable once registered.
type Manifest struct {
	ID           string `validate:"required"`
	Name         string `validate:"required"`
	Version      string `validate:"required"`
	Capabilities []Capability
}

// Status tracks a plugin's position in the activation state machine.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusError      Status = "error"
)

// RegisteredPlugin is the registry's record for one plugin.
type RegisteredPlugin struct {
	Manifest Manifest
	Status   Status
	Err      error
}

// CapabilityEntry pairs a registered capability with its owning plugin.
type CapabilityEntry struct {
	PluginID   string
	Capability Capability
}

// SkippedCapability records one capability that lost a conflict-key claim.
type SkippedCapability struct {
	PluginID string
	Type     CapabilityType
	Key      string
	OwnerID  string // plugin that holds the claim
}

// Registry indexes plugins and their capabilities. All methods are safe for
// concurrent use; each mutation is atomic with respect to other callers.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*RegisteredPlugin
	order   []string // registration order, drives deterministic merging
	entries map[CapabilityType][]CapabilityEntry
	claims  map[CapabilityType]map[string]string // conflict key -> owner id
	logger  *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		plugins: make(map[string]*RegisteredPlugin),
		entries: make(map[CapabilityType][]CapabilityEntry),
		claims:  make(map[CapabilityType]map[string]string),
		logger:  logger,
	}
}

// Register adds a plugin and indexes its capabilities. A duplicate id fails
// with ErrDuplicatePlugin before any state is touched. Capabilities whose
// conflict key is already claimed are skipped (returned and logged); the
// plugin still registers with its remaining capabilities.
func (r *Registry) Register(m Manifest) ([]SkippedCapability, error) {
	if err := validate.Struct(m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[m.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePlugin, m.ID)
	}

	var skipped []SkippedCapability
	for _, cap := range m.Capabilities {
		t := cap.Type()
		key, conflicts := conflictKey(cap)
		if conflicts {
			if owner, taken := r.claims[t][key]; taken {
				skipped = append(skipped, SkippedCapability{
					PluginID: m.ID,
					Type:     t,
					Key:      key,
					OwnerID:  owner,
				})
				r.logger.Warn("capability conflict, skipping",
					"plugin", m.ID,
					"type", string(t),
					"key", key,
					"owner", owner,
				)
				continue
			}
			if r.claims[t] == nil {
				r.claims[t] = make(map[string]string)
			}
			r.claims[t][key] = m.ID
		}
		r.entries[t] = append(r.entries[t], CapabilityEntry{PluginID: m.ID, Capability: cap})
	}

	r.plugins[m.ID] = &RegisteredPlugin{Manifest: m, Status: StatusRegistered}
	r.order = append(r.order, m.ID)
	return skipped, nil
}

// Unregister removes the plugin and purges every capability entry and
// conflict claim it owns. Returns false if the id was not registered; callers
// routinely unregister defensively.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[id]; !exists {
		return false
	}

	for t, list := range r.entries {
		kept := list[:0]
		for _, e := range list {
			if e.PluginID != id {
				kept = append(kept, e)
			}
		}
		r.entries[t] = kept
	}
	for _, keys := range r.claims {
		for key, owner := range keys {
			if owner == id {
				delete(keys, key)
			}
		}
	}

	delete(r.plugins, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Capabilities returns the registered entries of one type, in registration
// order. The slice is a copy; callers must not mutate shared state through it.
func (r *Registry) Capabilities(t CapabilityType) []CapabilityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CapabilityEntry, len(r.entries[t]))
	copy(out, r.entries[t])
	return out
}

// HasConflict reports whether a conflict key of the given type is already
// claimed. Pure predicate for callers that want to pre-check shared state.
func (r *Registry) HasConflict(t CapabilityType, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, taken := r.claims[t][key]
	return taken
}

// UpdateStatus moves a plugin through its activation state machine. Only the
// lifecycle manager should call this.
func (r *Registry) UpdateStatus(id string, s Status, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.plugins[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	p.Status = s
	p.Err = cause
	return nil
}

// Plugin returns a snapshot of one plugin's record.
func (r *Registry) Plugin(id string) (RegisteredPlugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.plugins[id]
	if !exists {
		return RegisteredPlugin{}, false
	}
	return *p, true
}

// All returns snapshots of every plugin in registration order.
func (r *Registry) All() []RegisteredPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RegisteredPlugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.plugins[id])
	}
	return out
}

// Order returns plugin ids in registration order.
func (r *Registry) Order() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Clear removes every plugin and every capability index entry in one step.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]*RegisteredPlugin)
	r.order = nil
	r.entries = make(map[CapabilityType][]CapabilityEntry)
	r.claims = make(map[CapabilityType]map[string]string)
}
