package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/deskbook/internal/persistence"
)

// ResourceRepository implements persistence.ResourceRepository using SQLite.
type ResourceRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewResourceRepository creates a new SQLite resource repository.
func NewResourceRepository(pool *ConnectionPool) *ResourceRepository {
	return &ResourceRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// UpsertResource inserts a desk or renames an existing one.
func (r *ResourceRepository) UpsertResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" {
		return fmt.Errorf("sqlite: resource id is required: %w", persistence.ErrConstraintViolation)
	}
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO resources (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, resource.ID, resource.Name, toUnix(resource.CreatedAt))
	return r.mapper.MapError(err)
}

// GetResource retrieves a desk by ID.
func (r *ResourceRepository) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	var (
		resource  persistence.Resource
		createdAt int64
	)
	err := r.pool.DB().QueryRowContext(ctx, `SELECT id, name, created_at FROM resources WHERE id = ?`, id).
		Scan(&resource.ID, &resource.Name, &createdAt)
	if err != nil {
		return persistence.Resource{}, r.mapper.MapError(err)
	}
	resource.CreatedAt = fromUnix(createdAt)
	return resource, nil
}

// ListResources returns all desks ordered by ID.
func (r *ResourceRepository) ListResources(ctx context.Context) ([]persistence.Resource, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT id, name, created_at FROM resources ORDER BY id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		var (
			resource  persistence.Resource
			createdAt int64
		)
		if err := rows.Scan(&resource.ID, &resource.Name, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		resource.CreatedAt = fromUnix(createdAt)
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return resources, nil
}
