package migration

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxExecutor implements Executor for PostgreSQL through a pgx pool.
type PgxExecutor struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPgxExecutor creates a migration executor over pool.
func NewPgxExecutor(pool *pgxpool.Pool) *PgxExecutor {
	return &PgxExecutor{pool: pool, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *PgxExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms BIGINT NOT NULL DEFAULT 0
		)
	`
	if _, err := e.pool.Exec(ctx, createTableSQL); err != nil {
		return newDatabaseError(0, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs the migration script and records it in one transaction.
func (e *PgxExecutor) ExecuteMigration(ctx context.Context, migration Migration) error {
	return pgx.BeginTxFunc(ctx, e.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		started := e.now()
		// No arguments, so pgx uses the simple protocol and accepts several statements.
		if _, err := tx.Exec(ctx, migration.SQL); err != nil {
			return newDatabaseError(migration.Version, "execute script", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES ($1, $2, $3, $4)`,
			migration.Version, started.UTC(), migration.Checksum, e.now().Sub(started).Milliseconds(),
		); err != nil {
			return newDatabaseError(migration.Version, "record migration", err)
		}
		return nil
	})
}

// AppliedMigrations returns all applied migration versions in ascending order.
func (e *PgxExecutor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT version, applied_at, checksum, execution_time_ms
		FROM schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, newDatabaseError(0, "query applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			elapsedMS int64
		)
		if err := rows.Scan(&m.Version, &m.AppliedAt, &m.Checksum, &elapsedMS); err != nil {
			return nil, newDatabaseError(0, "scan applied migration", err)
		}
		m.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, newDatabaseError(0, "iterate applied migrations", err)
	}
	return applied, nil
}
