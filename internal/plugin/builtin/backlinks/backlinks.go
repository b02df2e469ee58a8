// Package backlinks is a built-in plugin that maintains a reverse index of
// wiki-style [[links]]: for any note title it can answer which notes link to
// it. The index lives in the plugin's namespaced key/value store and is kept
// current through note events.
package backlinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/plugin"
	"github.com/inkwell-notes/inkwell/internal/registry"
	"github.com/inkwell-notes/inkwell/internal/services"
	"github.com/inkwell-notes/inkwell/internal/storage"
)

// ID is the plugin's stable identifier.
const ID = "inkwell.backlinks"

var wikiLink = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// Descriptor is the compile-time table entry for the backlinks plugin.
var Descriptor = plugin.Descriptor{
	ID: ID,
	Factory: func(pctx *plugin.Context) (plugin.Instance, error) {
		return &Plugin{pctx: pctx}, nil
	},
}

// Plugin indexes outgoing links per note and serves reverse lookups.
type Plugin struct {
	pctx *plugin.Context
}

func (p *Plugin) Manifest() registry.Manifest {
	return registry.Manifest{
		ID:      ID,
		Name:    "Backlinks",
		Version: "1.0.0",
		Capabilities: []registry.Capability{
			registry.RouterCapability{Namespace: "backlinks", Handler: p.routes()},
			registry.SidebarPanelCapability{
				ID:       "backlinks-panel",
				Label:    "Backlinks",
				Icon:     "link",
				Priority: 10,
			},
			registry.StorageCapability{Keys: []string{"links:*"}},
			registry.EventHookCapability{Events: []events.Type{
				events.NoteCreated, events.NoteUpdated, events.NoteDeleted,
			}},
		},
	}
}

// EventHandlers keeps the index in step with note mutations.
func (p *Plugin) EventHandlers() map[events.Type]events.Handler {
	return map[events.Type]events.Handler{
		events.NoteCreated: p.reindex,
		events.NoteUpdated: p.reindex,
		events.NoteDeleted: p.remove,
	}
}

// reindex stores the outgoing link targets of the changed note.
func (p *Plugin) reindex(ctx context.Context, ev events.Event) error {
	note, ok := ev.Payload.(*services.Note)
	if !ok {
		return nil
	}

	targets := extractLinks(note.Content)
	if len(targets) == 0 {
		return p.pctx.Storage.Delete(ctx, indexKey(ev.NoteID))
	}

	data, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("marshal link index: %w", err)
	}
	return p.pctx.Storage.Set(ctx, indexKey(ev.NoteID), string(data))
}

func (p *Plugin) remove(ctx context.Context, ev events.Event) error {
	return p.pctx.Storage.Delete(ctx, indexKey(ev.NoteID))
}

func (p *Plugin) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{title}", p.lookup)
	return r
}

// lookup handles GET /backlinks/{title}: every note id whose content links
// to the given title.
func (p *Plugin) lookup(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")

	sources, err := p.Backlinks(r.Context(), title)
	if err != nil {
		p.pctx.Logger.Error("backlink lookup failed", "title", title, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "lookup failed"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"title": title,
		"data":  sources,
		"total": len(sources),
	})
}

// Backlinks returns the ids of notes whose content links to title, sorted.
func (p *Plugin) Backlinks(ctx context.Context, title string) ([]string, error) {
	keys, err := p.pctx.Storage.Keys(ctx)
	if err != nil {
		return nil, err
	}

	sources := []string{}
	for _, key := range keys {
		value, err := p.pctx.Storage.Get(ctx, key)
		if errors.Is(err, storage.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var targets []string
		if err := json.Unmarshal([]byte(value), &targets); err != nil {
			continue
		}
		for _, target := range targets {
			if target == title {
				sources = append(sources, noteIDFromKey(key))
				break
			}
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func indexKey(noteID string) string {
	return "links:" + noteID
}

func noteIDFromKey(key string) string {
	return key[len("links:"):]
}

// extractLinks pulls the deduplicated wiki link targets out of content, in
// first-appearance order.
func extractLinks(content string) []string {
	var targets []string
	seen := make(map[string]bool)
	for _, m := range wikiLink.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			targets = append(targets, m[1])
		}
	}
	return targets
}
