// Package migration applies versioned SQL migrations to a database.
//
// Migration files are read from an fs.FS and follow the naming convention
// {version}_{description}.sql (e.g. "001_initial_schema.sql"). Applied versions
// are tracked in a schema_migrations table so each file runs once.
//
// Two executors are provided: SQLExecutor for database/sql drivers such as
// modernc.org/sqlite, and PgxExecutor for a pgx connection pool.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
