package migration

import (
	"context"
	"time"
)

// Migration represents a database migration with its metadata and SQL content.
type Migration struct {
	Version     int    // Numeric version parsed from the file name
	Description string // Human-readable description of the migration
	SQL         string // SQL statements to execute
	FilePath    string // Path of the file inside the source filesystem
	Checksum    string // SHA-256 of the SQL content
}

// AppliedMigration represents a migration that has been successfully applied.
type AppliedMigration struct {
	Version       int
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Executor runs migrations against one database engine.
type Executor interface {
	// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
	InitializeVersionTable(ctx context.Context) error

	// ExecuteMigration runs the migration and records it in one transaction.
	ExecuteMigration(ctx context.Context, migration Migration) error

	// AppliedMigrations returns the applied versions in ascending order.
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}

// Status provides information about the current migration state.
type Status struct {
	CurrentVersion int // Latest applied version, zero when none
	Applied        []AppliedMigration
	Pending        []Migration
}
