// Package services holds the domain collaborators the daemon consumes through
// narrow interfaces: documents, tasks, search, graph and export. The daemon
// only uses them to build RPC context and to originate domain events; their
// internals are deliberately small.
package services

import (
	"context"
	"errors"
	"time"
)

// ErrNoteNotFound is returned when a note id does not exist.
var ErrNoteNotFound = errors.New("note not found")

// Note is one vault document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task is one checklist item, optionally attached to a note.
type Task struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"noteId,omitempty"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

// Documents is the note service interface.
type Documents interface {
	Create(ctx context.Context, title, content string) (*Note, error)
	Get(ctx context.Context, id string) (*Note, error)
	Update(ctx context.Context, id, title, content string) (*Note, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Note, error)
}

// Tasks is the checklist service interface.
type Tasks interface {
	Create(ctx context.Context, noteID, text string) (*Task, error)
	SetDone(ctx context.Context, id string, done bool) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
}

// Search finds notes matching a query.
type Search interface {
	Query(ctx context.Context, q string) ([]*Note, error)
}

// Graph resolves the wiki-link neighborhood of a note.
type Graph interface {
	Links(ctx context.Context, id string) ([]string, error)
}

// Export renders a note for external consumption.
type Export interface {
	Markdown(ctx context.Context, id string) ([]byte, error)
}

// Container bundles the domain services handed to the RPC layer.
type Container struct {
	Documents Documents
	Tasks     Tasks
	Search    Search
	Graph     Graph
	Export    Export
}
