// SPDX-License-Identifier: BSL-1.1

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/slotforge/internal/resource/models"
)

var (
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource with this name already exists")
)

// ResourceRepository handles resource persistence.
type ResourceRepository struct {
	pool *pgxpool.Pool
}

// NewResourceRepository creates a new resource repository.
func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{pool: pool}
}

const resourceColumns = `id, name, description, tags, base_available, status, auto_reset_hours, unavailable_since, created_at, updated_at`

func scanResource(row pgx.Row) (*models.Resource, error) {
	r := &models.Resource{}
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Tags, &r.BaseAvailable, &r.Status,
		&r.AutoResetHours, &r.UnavailableSince, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to scan resource: %w", err)
	}
	return r, nil
}

// Create inserts a new resource.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	query := `
		INSERT INTO resources (id, name, description, tags, base_available, status, auto_reset_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		res.ID, res.Name, res.Description, res.Tags, res.BaseAvailable, res.Status, res.AutoResetHours,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrResourceAlreadyExists
		}
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

// GetByID retrieves a resource by id.
func (r *ResourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`
	return scanResource(r.pool.QueryRow(ctx, query, id))
}

// List returns every resource, newest first.
func (r *ResourceRepository) List(ctx context.Context) ([]*models.Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// SearchFallback performs a plain ILIKE scan over name/description plus
// an exact match of the lower-cased query against tags, used when
// Meilisearch is not configured or its query fails.
func (r *ResourceRepository) SearchFallback(ctx context.Context, query string) ([]*models.Resource, error) {
	sqlQuery := `
		SELECT ` + resourceColumns + ` FROM resources
		WHERE name ILIKE $1 OR description ILIKE $1 OR $2 = ANY(tags)
		ORDER BY created_at DESC`

	like := "%" + query + "%"
	rows, err := r.pool.Query(ctx, sqlQuery, like, strings.ToLower(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search resources: %w", err)
	}
	defer rows.Close()

	var out []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Update replaces a resource's mutable attributes.
func (r *ResourceRepository) Update(ctx context.Context, res *models.Resource) error {
	query := `
		UPDATE resources
		SET name = $2, description = $3, tags = $4, base_available = $5,
		    status = $6, auto_reset_hours = $7, unavailable_since = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		res.ID, res.Name, res.Description, res.Tags, res.BaseAvailable,
		res.Status, res.AutoResetHours, res.UnavailableSince,
	).Scan(&res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResourceNotFound
		}
		if isDuplicateKeyError(err) {
			return ErrResourceAlreadyExists
		}
		return fmt.Errorf("failed to update resource: %w", err)
	}
	return nil
}

// SetStatus transitions status and, when entering unavailable, stamps
// unavailable_since for the auto-reset sweep (§4.7).
func (r *ResourceRepository) SetStatus(ctx context.Context, id uuid.UUID, status string, unavailableSince *time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE resources SET status = $2, unavailable_since = $3, updated_at = NOW() WHERE id = $1`,
		id, status, unavailableSince,
	)
	if err != nil {
		return fmt.Errorf("failed to set resource status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// ListDueForAutoReset returns resources that are unavailable and whose
// auto_reset_hours window has elapsed.
func (r *ResourceRepository) ListDueForAutoReset(ctx context.Context, now time.Time) ([]*models.Resource, error) {
	query := `
		SELECT ` + resourceColumns + ` FROM resources
		WHERE status = 'unavailable'
		  AND auto_reset_hours IS NOT NULL
		  AND unavailable_since IS NOT NULL
		  AND unavailable_since + (auto_reset_hours || ' hours')::interval <= $1`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources due for auto-reset: %w", err)
	}
	defer rows.Close()

	var out []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Delete removes a resource.
func (r *ResourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrResourceNotFound
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
