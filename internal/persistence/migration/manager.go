package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  *Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager returns a Manager. A nil logger falls back to slog.Default.
func NewManager(scanner *Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With(slog.String("component", "migration")),
	}
}

// Run executes all pending migrations. Each migration runs in its own
// transaction; the first failure stops the sequence.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine migration status", "error", err)
		return err
	}

	m.logger.InfoContext(ctx, "migration status",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, migration := range status.Pending {
		migrationStarted := time.Now()
		logger := m.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"file", migration.FilePath,
		)
		logger.InfoContext(ctx, "applying migration", "step", i+1, "total", len(status.Pending))

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return newMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		logger.InfoContext(ctx, "migration applied", "duration", time.Since(migrationStarted))
	}

	if len(status.Pending) > 0 {
		m.logger.InfoContext(ctx, "migrations completed",
			"applied", len(status.Pending),
			"duration", time.Since(started),
		)
	}
	return nil
}

// Status reports applied and pending migrations. It fails when an applied
// version has no file or when an applied file's checksum changed.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get applied versions: %w", err)
	}

	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[migration.Version] = migration
	}

	status := Status{Applied: applied}
	appliedSet := make(map[int]struct{}, len(applied))
	for _, a := range applied {
		file, ok := byVersion[a.Version]
		if !ok {
			return Status{}, fmt.Errorf("%w: applied migration %03d not found in available migrations", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != file.Checksum {
			return Status{}, newMigrationError(a.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		appliedSet[a.Version] = struct{}{}
		if a.Version > status.CurrentVersion {
			status.CurrentVersion = a.Version
		}
	}

	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; ok {
			continue
		}
		if migration.Version < status.CurrentVersion {
			return Status{}, fmt.Errorf("%w: migration %03d is older than applied version %03d",
				ErrVersionConflict, migration.Version, status.CurrentVersion)
		}
		status.Pending = append(status.Pending, migration)
	}

	return status, nil
}
