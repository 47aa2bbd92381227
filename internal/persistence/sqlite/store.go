package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/deskbook/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is a SQLite-backed persistence.Store.
type Store struct {
	*BookingRepository
	*ResourceRepository

	pool *ConnectionPool
}

// Open connects to the database described by config. Call Migrate before use.
func Open(ctx context.Context, config Config) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Store{
		BookingRepository:  NewBookingRepository(pool),
		ResourceRepository: NewResourceRepository(pool),
		pool:               pool,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLExecutor(s.pool.DB()),
		logger,
	)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
