package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLExecutor implements Executor for database/sql connections using '?'
// placeholders, such as modernc.org/sqlite.
type SQLExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLExecutor creates a migration executor over db.
func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *SQLExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return newDatabaseError(0, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs the migration script and records it in one transaction.
// The script is sent as a single Exec so trigger bodies keep their semicolons.
func (e *SQLExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return newDatabaseError(migration.Version, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback error: %v)", err, rbErr)
			}
		}
	}()

	started := e.now()
	if _, err = tx.ExecContext(ctx, migration.SQL); err != nil {
		return newDatabaseError(migration.Version, "execute script", err)
	}

	const insertSQL = `
		INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?)
	`
	elapsed := e.now().Sub(started)
	if _, err = tx.ExecContext(ctx, insertSQL,
		migration.Version,
		started.UTC().Format(time.RFC3339Nano),
		migration.Checksum,
		elapsed.Milliseconds(),
	); err != nil {
		return newDatabaseError(migration.Version, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return newDatabaseError(migration.Version, "commit transaction", err)
	}
	return nil
}

// AppliedMigrations returns all applied migration versions in ascending order.
func (e *SQLExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	const querySQL = `
		SELECT version, applied_at, checksum, execution_time_ms
		FROM schema_migrations
		ORDER BY version ASC
	`
	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, newDatabaseError(0, "query applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &m.Checksum, &elapsedMS); err != nil {
			return nil, newDatabaseError(0, "scan applied migration", err)
		}
		if m.AppliedAt, err = time.Parse(time.RFC3339Nano, appliedAt); err != nil {
			return nil, newDatabaseError(m.Version, "parse applied_at", err)
		}
		m.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, newDatabaseError(0, "iterate applied migrations", err)
	}
	return applied, nil
}
