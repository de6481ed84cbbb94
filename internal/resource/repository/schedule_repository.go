// SPDX-License-Identifier: BSL-1.1

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/slotforge/internal/resource/models"
)

// ScheduleRepository persists business hours and blackout dates, the
// two compositional inputs to the availability projector (§4.3)
// besides live reservations.
type ScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// BusinessHoursFor returns the effective weekly schedule for a
// resource: its own override rows if any exist, else the global rows.
func (r *ScheduleRepository) BusinessHoursFor(ctx context.Context, resourceID uuid.UUID) ([]*models.BusinessHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, resource_id, weekday, open_minute, close_minute, closed
		FROM business_hours WHERE resource_id = $1 ORDER BY weekday`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource business hours: %w", err)
	}
	hours, err := scanHours(rows)
	if err != nil {
		return nil, err
	}
	if len(hours) > 0 {
		return hours, nil
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, resource_id, weekday, open_minute, close_minute, closed
		FROM business_hours WHERE resource_id IS NULL ORDER BY weekday`)
	if err != nil {
		return nil, fmt.Errorf("failed to query global business hours: %w", err)
	}
	return scanHours(rows)
}

func scanHours(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]*models.BusinessHours, error) {
	defer rows.Close()
	var out []*models.BusinessHours
	for rows.Next() {
		h := &models.BusinessHours{}
		if err := rows.Scan(&h.ID, &h.ResourceID, &h.Weekday, &h.OpenMinute, &h.CloseMinute, &h.Closed); err != nil {
			return nil, fmt.Errorf("failed to scan business hours: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ReplaceBusinessHours atomically replaces the full set of rows for a
// scope (resourceID nil means global).
func (r *ScheduleRepository) ReplaceBusinessHours(ctx context.Context, resourceID *uuid.UUID, rows []*models.BusinessHours) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin business hours transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if resourceID != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE resource_id = $1`, *resourceID); err != nil {
			return fmt.Errorf("failed to clear business hours: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE resource_id IS NULL`); err != nil {
			return fmt.Errorf("failed to clear global business hours: %w", err)
		}
	}

	for _, row := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO business_hours (id, resource_id, weekday, open_minute, close_minute, closed)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), resourceID, row.Weekday, row.OpenMinute, row.CloseMinute, row.Closed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert business hours row: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// BlackoutsIntersecting returns blackout dates (global or scoped to
// resourceID) whose calendar date intersects [from, to), including the
// date on which from falls even when from is past its midnight.
func (r *ScheduleRepository) BlackoutsIntersecting(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*models.BlackoutDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, resource_id, date, reason FROM blackout_dates
		WHERE (resource_id = $1 OR resource_id IS NULL)
		  AND date >= $2::date AND date < $3
		ORDER BY date`, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query blackout dates: %w", err)
	}
	defer rows.Close()

	var out []*models.BlackoutDate
	for rows.Next() {
		b := &models.BlackoutDate{}
		if err := rows.Scan(&b.ID, &b.ResourceID, &b.Date, &b.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan blackout date: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBlackout inserts a blackout date, global when resourceID is nil.
func (r *ScheduleRepository) CreateBlackout(ctx context.Context, b *models.BlackoutDate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blackout_dates (id, resource_id, date, reason)
		VALUES ($1, $2, $3, $4)`, b.ID, b.ResourceID, b.Date, b.Reason)
	if err != nil {
		return fmt.Errorf("failed to create blackout date: %w", err)
	}
	return nil
}

// DeleteBlackout removes a blackout date.
func (r *ScheduleRepository) DeleteBlackout(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM blackout_dates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blackout date: %w", err)
	}
	return nil
}
