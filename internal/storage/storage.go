// Package storage owns the vault database: an embedded SQLite file holding
// the note tables and a namespaced key/value store handed to plugins. Schema
// migrations are embedded in the binary and applied on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ErrKeyNotFound is returned when a namespaced key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Store is the open vault database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the vault database at path and runs all
// pending migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create vault directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vault database: %w", err)
	}

	// Single-process daemon; one writer avoids SQLITE_BUSY under
	// interleaved requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("vault database opened", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// runMigrations applies the embedded SQL migrations.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(EmbeddedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the domain services.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the vault database file path.
func (s *Store) Path() string {
	return s.path
}

// Namespace returns a key/value store isolated to the given plugin id. This
// is the storage factory handed to the plugin loader.
func (s *Store) Namespace(pluginID string) *Namespace {
	return &Namespace{db: s.db, pluginID: pluginID}
}

// Namespace is a per-plugin key/value view over the plugin_kv table. A
// namespace can only read and write rows carrying its own plugin id.
type Namespace struct {
	db       *sql.DB
	pluginID string
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (n *Namespace) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := n.db.QueryRowContext(ctx,
		"SELECT value FROM plugin_kv WHERE plugin_id = ? AND key = ?",
		n.pluginID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (n *Namespace) Set(ctx context.Context, key, value string) error {
	_, err := n.db.ExecContext(ctx,
		`INSERT INTO plugin_kv (plugin_id, key, value, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (plugin_id, key) DO UPDATE
		 SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		n.pluginID, key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	_, err := n.db.ExecContext(ctx,
		"DELETE FROM plugin_kv WHERE plugin_id = ? AND key = ?",
		n.pluginID, key,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every key in this namespace.
func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	rows, err := n.db.QueryContext(ctx,
		"SELECT key FROM plugin_kv WHERE plugin_id = ? ORDER BY key",
		n.pluginID,
	)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
