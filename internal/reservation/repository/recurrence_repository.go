// SPDX-License-Identifier: BSL-1.1

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/slotforge/internal/reservation/models"
)

// RecurrenceRepository persists the RecurrenceRule shared by every
// instance of a recurring reservation.
type RecurrenceRepository struct {
	pool *pgxpool.Pool
}

// NewRecurrenceRepository creates a new recurrence rule repository.
func NewRecurrenceRepository(pool *pgxpool.Pool) *RecurrenceRepository {
	return &RecurrenceRepository{pool: pool}
}

// Create inserts a recurrence rule.
func (r *RecurrenceRepository) Create(ctx context.Context, rule *models.RecurrenceRule) error {
	query := `
		INSERT INTO recurrence_rules (id, frequency, interval, days_of_week, end_policy, end_date, occurrence_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		rule.ID, rule.Frequency, rule.Interval, rule.DaysOfWeek, rule.EndPolicy, rule.EndDate, rule.OccurrenceCount,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recurrence rule: %w", err)
	}
	return nil
}

// GetByID retrieves a recurrence rule by id.
func (r *RecurrenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RecurrenceRule, error) {
	rule := &models.RecurrenceRule{}
	query := `SELECT id, frequency, interval, days_of_week, end_policy, end_date, occurrence_count, created_at, updated_at
		FROM recurrence_rules WHERE id = $1`
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rule.ID, &rule.Frequency, &rule.Interval, &rule.DaysOfWeek, &rule.EndPolicy, &rule.EndDate, &rule.OccurrenceCount,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recurrence rule: %w", err)
	}
	return rule, nil
}
