package storage

import "embed"

// EmbeddedMigrations contains all SQL migration files compiled into the
// binary. The daemon never needs external migration files at runtime.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
