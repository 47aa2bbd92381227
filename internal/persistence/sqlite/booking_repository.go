package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/deskbook/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

const bookingColumns = `id, resource_id, user_id, series_id, start_at, end_at, created_at`

// FindBookings returns bookings of resourceID intersecting [from, to).
func (r *BookingRepository) FindBookings(ctx context.Context, resourceID string, from, to time.Time) ([]persistence.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE resource_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC, id ASC
	`

	rows, err := r.pool.DB().QueryContext(ctx, query, resourceID, toUnix(to), toUnix(from))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return bookings, nil
}

// InsertBookings stores the batch in one IMMEDIATE transaction. Overlaps with
// stored rows or between siblings roll the whole batch back.
func (r *BookingRepository) InsertBookings(ctx context.Context, resourceID string, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	lo, hi := bookings[0].StartAt, bookings[0].EndAt
	for i, b := range bookings {
		if b.ResourceID != resourceID {
			return fmt.Errorf("sqlite: booking %s belongs to resource %s, batch is for %s: %w",
				b.ID, b.ResourceID, resourceID, persistence.ErrConstraintViolation)
		}
		for _, sibling := range bookings[:i] {
			if sibling.Overlaps(b) {
				return fmt.Errorf("sqlite: booking overlaps sibling %s: %w", sibling.ID, persistence.ErrConstraintViolation)
			}
		}
		if b.StartAt.Before(lo) {
			lo = b.StartAt
		}
		if b.EndAt.After(hi) {
			hi = b.EndAt
		}
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.probeOverlap(ctx, tx, resourceID, lo, hi, bookings); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range bookings {
			if _, err := stmt.ExecContext(ctx,
				b.ID,
				b.ResourceID,
				b.UserID,
				b.SeriesID,
				toUnix(b.StartAt),
				toUnix(b.EndAt),
				toUnix(b.CreatedAt),
			); err != nil {
				return err
			}
		}
		return nil
	})
	return r.mapper.MapError(err)
}

// probeOverlap looks for stored bookings clashing with any member of the batch.
// The trigger enforces the same rule; the probe names the clashing row.
func (r *BookingRepository) probeOverlap(ctx context.Context, tx *sql.Tx, resourceID string, lo, hi time.Time, batch []persistence.Booking) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE resource_id = ? AND start_at < ? AND end_at > ?
	`, resourceID, toUnix(hi), toUnix(lo))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		existing, err := scanBooking(rows)
		if err != nil {
			return err
		}
		for _, b := range batch {
			if existing.Overlaps(b) {
				return fmt.Errorf("sqlite: booking %s overlaps %s: %w", b.ID, existing.ID, persistence.ErrConstraintViolation)
			}
		}
	}
	return rows.Err()
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return b, nil
}

// DeleteBooking removes a booking by ID.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		b                         persistence.Booking
		startAt, endAt, createdAt int64
	)
	if err := row.Scan(&b.ID, &b.ResourceID, &b.UserID, &b.SeriesID, &startAt, &endAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, err
	}
	b.StartAt = fromUnix(startAt)
	b.EndAt = fromUnix(endAt)
	b.CreatedAt = fromUnix(createdAt)
	return b, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
