package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/deskbook/internal/persistence"
	"github.com/example/deskbook/internal/persistence/bookingstore"
	"github.com/example/deskbook/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style tests.
type SQLiteHarness struct {
	Store   *sqlite.Store
	Adapter *bookingstore.Adapter

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically and seeded with the given resources. Callers may
// optionally invoke Close, but the helper also registers a cleanup callback
// with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB, resources ...ResourceFixture) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "deskbook.db")

	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(ctx, nil); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	if err := Seed(ctx, store, resources...); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to seed storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:   store,
		Adapter: bookingstore.New(store),
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Seed upserts the resources into store.
func Seed(ctx context.Context, store persistence.ResourceRepository, resources ...ResourceFixture) error {
	for _, resource := range resources {
		if err := store.UpsertResource(ctx, resource.Persistence()); err != nil {
			return err
		}
	}
	return nil
}
