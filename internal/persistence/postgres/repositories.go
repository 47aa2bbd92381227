package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/deskbook/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository on PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

const bookingColumns = `id, resource_id, user_id, series_id, start_at, end_at, created_at`

// FindBookings returns bookings of resourceID intersecting [from, to).
func (r *BookingRepository) FindBookings(ctx context.Context, resourceID string, from, to time.Time) ([]persistence.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE resource_id = $1 AND start_at < $2 AND end_at > $3
		ORDER BY start_at ASC, id ASC
	`, resourceID, to.UTC(), from.UTC())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []persistence.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// InsertBookings stores the batch in one transaction. Writers for the same
// resource are serialized with a transaction-scoped advisory lock; the
// exclusion constraint rejects any overlap that still reaches the table.
func (r *BookingRepository) InsertBookings(ctx context.Context, resourceID string, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	for i, b := range bookings {
		if b.ResourceID != resourceID {
			return fmt.Errorf("postgres: booking %s belongs to resource %s, batch is for %s: %w",
				b.ID, b.ResourceID, resourceID, persistence.ErrConstraintViolation)
		}
		for _, sibling := range bookings[:i] {
			if sibling.Overlaps(b) {
				return fmt.Errorf("postgres: booking overlaps sibling %s: %w", sibling.ID, persistence.ErrConstraintViolation)
			}
		}
	}

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, resourceID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, b := range bookings {
			batch.Queue(`INSERT INTO bookings (`+bookingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				b.ID, b.ResourceID, b.UserID, b.SeriesID, b.StartAt.UTC(), b.EndAt.UTC(), b.CreatedAt.UTC())
		}
		results := tx.SendBatch(ctx, batch)
		for range bookings {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
		}
		return results.Close()
	})
	return mapError(err)
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return b, nil
}

// DeleteBooking removes a booking by ID.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var b persistence.Booking
	if err := row.Scan(&b.ID, &b.ResourceID, &b.UserID, &b.SeriesID, &b.StartAt, &b.EndAt, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, err
	}
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

// ResourceRepository implements persistence.ResourceRepository on PostgreSQL.
type ResourceRepository struct {
	pool *pgxpool.Pool
}

// UpsertResource inserts a desk or renames an existing one.
func (r *ResourceRepository) UpsertResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" {
		return fmt.Errorf("postgres: resource id is required: %w", persistence.ErrConstraintViolation)
	}
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO resources (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, resource.ID, resource.Name, resource.CreatedAt.UTC())
	return mapError(err)
}

// GetResource retrieves a desk by ID.
func (r *ResourceRepository) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	var resource persistence.Resource
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM resources WHERE id = $1`, id).
		Scan(&resource.ID, &resource.Name, &resource.CreatedAt)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}
	resource.CreatedAt = resource.CreatedAt.UTC()
	return resource, nil
}

// ListResources returns all desks ordered by ID.
func (r *ResourceRepository) ListResources(ctx context.Context) ([]persistence.Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM resources ORDER BY id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	resources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (persistence.Resource, error) {
		var resource persistence.Resource
		err := row.Scan(&resource.ID, &resource.Name, &resource.CreatedAt)
		resource.CreatedAt = resource.CreatedAt.UTC()
		return resource, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return resources, nil
}
