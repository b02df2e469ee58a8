// Package wordcount is a built-in plugin that tracks per-note word counts.
// It contributes a /wordcount slash command and keeps counts current through
// note events.
package wordcount

import (
	"context"
	"strings"
	"sync"

	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/plugin"
	"github.com/inkwell-notes/inkwell/internal/registry"
	"github.com/inkwell-notes/inkwell/internal/services"
)

// ID is the plugin's stable identifier.
const ID = "inkwell.wordcount"

// Descriptor is the compile-time table entry for the wordcount plugin.
var Descriptor = plugin.Descriptor{
	ID: ID,
	Factory: func(pctx *plugin.Context) (plugin.Instance, error) {
		return &Plugin{
			pctx:   pctx,
			counts: make(map[string]int),
		}, nil
	},
}

// Plugin caches word counts per note id. Counts are rebuilt from events, so
// the cache needs no persistence.
type Plugin struct {
	pctx *plugin.Context

	mu     sync.RWMutex
	counts map[string]int
}

func (p *Plugin) Manifest() registry.Manifest {
	return registry.Manifest{
		ID:      ID,
		Name:    "Word Count",
		Version: "1.0.0",
		Capabilities: []registry.Capability{
			registry.SlashCommandCapability{
				Command:     "wordcount",
				Label:       "Word Count",
				Description: "Show the word count of the current note",
			},
			registry.EventHookCapability{Events: []events.Type{
				events.NoteCreated, events.NoteUpdated, events.NoteDeleted,
			}},
		},
	}
}

func (p *Plugin) EventHandlers() map[events.Type]events.Handler {
	return map[events.Type]events.Handler{
		events.NoteCreated: p.recount,
		events.NoteUpdated: p.recount,
		events.NoteDeleted: p.forget,
	}
}

func (p *Plugin) recount(ctx context.Context, ev events.Event) error {
	note, ok := ev.Payload.(*services.Note)
	if !ok {
		return nil
	}
	count := len(strings.Fields(note.Content))

	p.mu.Lock()
	p.counts[ev.NoteID] = count
	p.mu.Unlock()

	p.pctx.Logger.Debug("word count updated", "note", ev.NoteID, "words", count)
	return nil
}

func (p *Plugin) forget(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	delete(p.counts, ev.NoteID)
	p.mu.Unlock()
	return nil
}

// Count reports the cached word count for a note. The second return is false
// when the note has not been seen.
func (p *Plugin) Count(noteID string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	count, ok := p.counts[noteID]
	return count, ok
}
