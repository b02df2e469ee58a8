package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-notes/inkwell/internal/events"
	"github.com/inkwell-notes/inkwell/internal/storage"
)

// NewContainer builds the sqlite-backed service container against the open
// vault store. Note mutations emit domain events through emitter; handler
// failures are logged, not surfaced, since the mutation has already
// committed.
func NewContainer(store *storage.Store, emitter *events.ScopedEmitter, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	docs := &documentService{db: store.DB(), emitter: emitter, logger: logger}
	return &Container{
		Documents: docs,
		Tasks:     &taskService{db: store.DB()},
		Search:    &searchService{db: store.DB()},
		Graph:     &graphService{docs: docs},
		Export:    &exportService{docs: docs},
	}
}

type documentService struct {
	db      *sql.DB
	emitter *events.ScopedEmitter
	logger  *slog.Logger
}

func (s *documentService) Create(ctx context.Context, title, content string) (*Note, error) {
	note := &Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notes (id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		note.ID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.emit(ctx, events.NoteCreated, note)
	return note, nil
}

func (s *documentService) Get(ctx context.Context, id string) (*Note, error) {
	note := &Note{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, content, created_at, updated_at FROM notes WHERE id = ?", id,
	).Scan(&note.ID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

func (s *documentService) Update(ctx context.Context, id, title, content string) (*Note, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?",
		title, content, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}

	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.NoteUpdated, note)
	return note, nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}

	s.emit(ctx, events.NoteDeleted, &Note{ID: id})
	return nil
}

func (s *documentService) List(ctx context.Context) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, content, created_at, updated_at FROM notes ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// emit publishes a note event. The note is already committed, so handler
// failures only get logged here.
func (s *documentService) emit(ctx context.Context, t events.Type, note *Note) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, t, note.ID, note); err != nil {
		s.logger.Warn("event handlers failed", "event", string(t), "note", note.ID, "error", err)
	}
}

type taskService struct {
	db *sql.DB
}

func (s *taskService) Create(ctx context.Context, noteID, text string) (*Task, error) {
	task := &Task{
		ID:        uuid.New().String(),
		NoteID:    noteID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	var nid any
	if noteID != "" {
		nid = noteID
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (id, note_id, text, done, created_at) VALUES (?, ?, ?, 0, ?)",
		task.ID, nid, task.Text, task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *taskService) SetDone(ctx context.Context, id string, done bool) (*Task, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET done = ? WHERE id = ?", done, id)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("task not found: %s", id)
	}

	task := &Task{}
	var noteID sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT id, note_id, text, done, created_at FROM tasks WHERE id = ?", id,
	).Scan(&task.ID, &noteID, &task.Text, &task.Done, &task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	task.NoteID = noteID.String
	return task, nil
}

func (s *taskService) List(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, note_id, text, done, created_at FROM tasks ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task := &Task{}
		var noteID sql.NullString
		if err := rows.Scan(&task.ID, &noteID, &task.Text, &task.Done, &task.CreatedAt); err != nil {
			return nil, err
		}
		task.NoteID = noteID.String
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

type searchService struct {
	db *sql.DB
}

func (s *searchService) Query(ctx context.Context, q string) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM notes
		 WHERE title LIKE '%' || ? || '%' OR content LIKE '%' || ? || '%'
		 ORDER BY updated_at DESC`, q, q)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// wikiLink matches [[target]] references in note content.
var wikiLink = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

type graphService struct {
	docs Documents
}

func (s *graphService) Links(ctx context.Context, id string) ([]string, error) {
	note, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	for _, m := range wikiLink.FindAllStringSubmatch(note.Content, -1) {
		if target := m[1]; !seen[target] {
			seen[target] = true
			links = append(links, target)
		}
	}
	return links, nil
}

type exportService struct {
	docs Documents
}

func (s *exportService) Markdown(ctx context.Context, id string) ([]byte, error) {
	note, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := fmt.Sprintf("# %s\n\n%s\n", note.Title, note.Content)
	return []byte(out), nil
}

func scanNotes(rows *sql.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		note := &Note{}
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
