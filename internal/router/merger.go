// Package router composes the daemon's served API surface: the core endpoint
// namespaces plus the router capabilities contributed by active plugins.
//
// Merging is deterministic: core namespaces win outright, then plugins are
// visited in registration order and the first acceptable claim of a namespace
// wins. Conflicting or inactive contributions are skipped and reported, never
// silently dropped.
package router

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/registry"
)

// MergedNamespace records one namespace that made it into the served surface.
type MergedNamespace struct {
	Namespace string
	PluginID  string // empty for core namespaces
}

// SkippedNamespace records one plugin contribution that was not exposed.
type SkippedNamespace struct {
	PluginID  string
	Namespace string
	Reason    string
}

// MergeResult is the composed surface plus a full account of what was
// exposed and what was skipped, so the daemon can log exactly what it serves.
type MergeResult struct {
	Handler http.Handler
	Merged  []MergedNamespace
	Skipped []SkippedNamespace
}

// Merge builds one handler from the core namespace handlers and the
// registry's router capabilities. isActive gates plugin contributions: only
// namespaces owned by currently-active plugins are mounted.
func Merge(core map[string]http.Handler, reg *registry.Registry, isActive func(id string) bool, logger *slog.Logger) MergeResult {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.NotFound(notFoundJSON)
	r.MethodNotAllowed(notFoundJSON)

	var result MergeResult
	claimed := make(map[string]string) // namespace -> owner ("" for core)

	// Core namespaces mount first and always win. Sorted for determinism.
	coreNames := make([]string, 0, len(core))
	for ns := range core {
		coreNames = append(coreNames, ns)
	}
	sort.Strings(coreNames)
	for _, ns := range coreNames {
		r.Mount("/"+ns, core[ns])
		claimed[ns] = ""
		result.Merged = append(result.Merged, MergedNamespace{Namespace: ns})
	}

	// Plugin contributions in registration order; within one plugin,
	// namespaces are visited sorted so a merge is reproducible.
	entries := reg.Capabilities(registry.CapabilityRouter)
	byPlugin := make(map[string][]registry.RouterCapability)
	for _, e := range entries {
		cap, ok := e.Capability.(registry.RouterCapability)
		if !ok {
			continue
		}
		byPlugin[e.PluginID] = append(byPlugin[e.PluginID], cap)
	}

	for _, pluginID := range reg.Order() {
		caps := byPlugin[pluginID]
		sort.Slice(caps, func(i, j int) bool { return caps[i].Namespace < caps[j].Namespace })

		for _, cap := range caps {
			if owner, taken := claimed[cap.Namespace]; taken {
				reason := "namespace conflicts with core namespace"
				if owner != "" {
					reason = "namespace already claimed by plugin " + owner
				}
				result.Skipped = append(result.Skipped, SkippedNamespace{
					PluginID:  pluginID,
					Namespace: cap.Namespace,
					Reason:    reason,
				})
				logger.Warn("router namespace skipped",
					"plugin", pluginID, "namespace", cap.Namespace, "reason", reason)
				continue
			}
			if !isActive(pluginID) {
				result.Skipped = append(result.Skipped, SkippedNamespace{
					PluginID:  pluginID,
					Namespace: cap.Namespace,
					Reason:    "plugin not active",
				})
				continue
			}
			if cap.Handler == nil {
				result.Skipped = append(result.Skipped, SkippedNamespace{
					PluginID:  pluginID,
					Namespace: cap.Namespace,
					Reason:    "capability has no handler",
				})
				continue
			}

			r.Mount("/"+cap.Namespace, cap.Handler)
			claimed[cap.Namespace] = pluginID
			result.Merged = append(result.Merged, MergedNamespace{
				Namespace: cap.Namespace,
				PluginID:  pluginID,
			})
		}
	}

	result.Handler = r
	return result
}

// notFoundJSON answers anything the merged surface does not serve with a
// JSON error body.
func notFoundJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"no such endpoint"}}`))
}
