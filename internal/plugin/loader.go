package plugin

import (
	"fmt"
	"log/slog"

	"github.com/inkwell-notes/inkwell/internal/registry"
)

// LoadError records one plugin that failed to load.
type LoadError struct {
	PluginID string
	Err      error
}

// LoadResult aggregates the outcome of a load pass. Loading is best-effort:
// one plugin's failure never aborts the others.
type LoadResult struct {
	Loaded []string
	Failed []LoadError
}

// Loader instantiates plugin modules and registers them.
type Loader struct {
	registry   *registry.Registry
	newContext ContextFactory
	logger     *slog.Logger
}

// NewLoader creates a loader that feeds results into reg and builds each
// plugin's context through newContext.
func NewLoader(reg *registry.Registry, newContext ContextFactory, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{registry: reg, newContext: newContext, logger: logger}
}

// Load instantiates each descriptor against a freshly built context and
// registers the result. Failures (context construction, factory error or
// panic, manifest rejection) are isolated per plugin; a failed plugin leaves
// no capability side effects. Returned instances are keyed by plugin id.
func (l *Loader) Load(descriptors []Descriptor) (LoadResult, map[string]Instance) {
	var result LoadResult
	instances := make(map[string]Instance, len(descriptors))

	for _, d := range descriptors {
		inst, err := l.loadOne(d)
		if err != nil {
			l.logger.Error("plugin load failed", "plugin", d.ID, "error", err)
			result.Failed = append(result.Failed, LoadError{PluginID: d.ID, Err: err})
			continue
		}
		instances[d.ID] = inst
		result.Loaded = append(result.Loaded, d.ID)
		l.logger.Info("plugin loaded",
			"plugin", d.ID,
			"version", inst.Manifest().Version,
			"capabilities", len(inst.Manifest().Capabilities),
		)
	}
	return result, instances
}

// loadOne builds the context, runs the factory and registers the manifest.
// A panicking factory is recovered and reported as a load failure.
func (l *Loader) loadOne(d Descriptor) (inst Instance, err error) {
	pctx, err := l.newContext(d.ID)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = fmt.Errorf("factory panic: %v", r)
		}
	}()

	inst, err = d.Factory(pctx)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("factory returned nil instance")
	}

	m := inst.Manifest()
	if m.ID != d.ID {
		return nil, fmt.Errorf("manifest id %q does not match descriptor id %q", m.ID, d.ID)
	}

	if _, err := l.registry.Register(m); err != nil {
		return nil, err
	}
	return inst, nil
}
