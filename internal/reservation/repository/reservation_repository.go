// SPDX-License-Identifier: BSL-1.1

// Package repository persists reservations and their audit history
// behind the two compound, transaction-backed operations §4.8
// requires: conflict-checked create and idempotent cancel/expire.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/pkg/database"
	"github.com/slotforge/slotforge/internal/reservation/models"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrConflict            = errors.New("reservation conflicts with an existing booking")
)

// ConflictError carries the ids of the overlapping active reservations
// so handlers can report them per §6/§8.
type ConflictError struct {
	OverlappingIDs []uuid.UUID
}

func (e *ConflictError) Error() string { return ErrConflict.Error() }
func (e *ConflictError) Unwrap() error { return ErrConflict }

// ReservationRepository handles reservation persistence.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

const reservationColumns = `id, user_id, resource_id, start_time, end_time, status,
	recurrence_rule_id, parent_reservation_id, cancelled_at, cancellation_reason, created_at, updated_at`

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	r := &models.Reservation{}
	err := row.Scan(
		&r.ID, &r.UserID, &r.ResourceID, &r.StartTime, &r.EndTime, &r.Status,
		&r.RecurrenceRuleID, &r.ParentReservationID, &r.CancelledAt, &r.CancellationReason,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to scan reservation: %w", err)
	}
	return r, nil
}

// conflictingIDs returns the ids of active reservations on resourceID
// whose interval intersects [start, end) under the tx snapshot,
// excluding excludeID when set (Create and CreateBatch both pass nil).
func conflictingIDs(ctx context.Context, tx pgx.Tx, resourceID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM reservations
		WHERE resource_id = $1 AND status = 'active'
		  AND start_time < $3 AND end_time > $2
		  AND ($4::uuid IS NULL OR id != $4)`

	rows, err := tx.Query(ctx, query, resourceID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reservation conflicts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conflicting id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertReservation(ctx context.Context, tx pgx.Tx, r *models.Reservation) error {
	query := `
		INSERT INTO reservations (id, user_id, resource_id, start_time, end_time, status, recurrence_rule_id, parent_reservation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return tx.QueryRow(ctx, query,
		r.ID, r.UserID, r.ResourceID, r.StartTime, r.EndTime, r.Status, r.RecurrenceRuleID, r.ParentReservationID,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func appendHistory(ctx context.Context, tx pgx.Tx, reservationID, actor uuid.UUID, action string, details interface{}) error {
	var raw []byte
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal history details: %w", err)
		}
		raw = b
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO reservation_history (id, reservation_id, action, actor, details)
		VALUES ($1, $2, $3, $4, $5)`, uuid.New(), reservationID, action, actor, raw)
	if err != nil {
		return fmt.Errorf("failed to append reservation history: %w", err)
	}
	return nil
}

// Create performs the compound create_reservation_if_no_conflict
// operation (§4.8): resource-level advisory lock, conflict re-check,
// insert and history append, all within one transaction.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reservation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := database.LockResource(ctx, tx, res.ResourceID.String()); err != nil {
		return err
	}

	overlapping, err := conflictingIDs(ctx, tx, res.ResourceID, res.StartTime, res.EndTime, nil)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return &ConflictError{OverlappingIDs: overlapping}
	}

	if err := insertReservation(ctx, tx, res); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	if err := appendHistory(ctx, tx, res.ID, res.UserID, models.ActionCreated, nil); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateBatch inserts every instance of a recurring reservation
// atomically: all instances are checked against existing rows and
// against each other under one resource lock, and either all persist
// or none do (§4.2's recurring-create all-or-nothing rule).
func (r *ReservationRepository) CreateBatch(ctx context.Context, resourceID uuid.UUID, instances []*models.Reservation) error {
	if len(instances) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin recurring reservation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := database.LockResource(ctx, tx, resourceID.String()); err != nil {
		return err
	}

	for i, inst := range instances {
		overlapping, err := conflictingIDs(ctx, tx, resourceID, inst.StartTime, inst.EndTime, nil)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return &ConflictError{OverlappingIDs: overlapping}
		}
		for j, other := range instances {
			if j == i {
				continue
			}
			if inst.Overlaps(other.StartTime, other.EndTime) {
				return &ConflictError{OverlappingIDs: []uuid.UUID{other.ID}}
			}
		}
	}

	for _, inst := range instances {
		if err := insertReservation(ctx, tx, inst); err != nil {
			return fmt.Errorf("failed to insert recurring instance: %w", err)
		}
		if err := appendHistory(ctx, tx, inst.ID, inst.UserID, models.ActionCreated, nil); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a reservation by id.
func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(r.pool.QueryRow(ctx, query, id))
}

// ListByUser returns a user's reservations, newest first.
func (r *ReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE user_id = $1 ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ActiveInRange returns active reservations on a resource intersecting
// [from, to), for the availability projector to subtract.
func (r *ReservationRepository) ActiveInRange(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE resource_id = $1 AND status = 'active' AND start_time < $3 AND end_time > $2
		ORDER BY start_time`

	rows, err := r.pool.Query(ctx, query, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list active reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// CountActiveToday returns how many reservations a user has created
// today, for the §4.2 per-user-per-day quota check.
func (r *ReservationRepository) CountActiveToday(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE user_id = $1 AND status != 'cancelled' AND created_at >= $2 AND created_at < $3`,
		userID, dayStart, dayEnd,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily reservations: %w", err)
	}
	return count, nil
}

func scanReservations(rows pgx.Rows) ([]*models.Reservation, error) {
	var out []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Cancel transitions a reservation to cancelled. Idempotent: cancelling
// an already-cancelled reservation is a no-op returning the current row.
func (r *ReservationRepository) Cancel(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin cancel transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := scanReservation(tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if res.Status == "cancelled" {
		return res, tx.Commit(ctx)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE reservations SET status = 'cancelled', cancelled_at = $2, cancellation_reason = $3, updated_at = NOW()
		WHERE id = $1`, id, now, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if err := appendHistory(ctx, tx, id, actor, models.ActionCancelled, map[string]string{"reason": reason}); err != nil {
		return nil, err
	}

	res.Status = "cancelled"
	res.CancelledAt = &now
	res.CancellationReason = reason

	return res, tx.Commit(ctx)
}

// ListDueForExpiry returns active reservations whose window has
// already ended, for the §4.7 expire sweep.
func (r *ReservationRepository) ListDueForExpiry(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE status = 'active' AND end_time <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations due for expiry: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// Expire transitions a single reservation to expired and appends history.
func (r *ReservationRepository) Expire(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin expire transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `UPDATE reservations SET status = 'expired', updated_at = NOW() WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("failed to expire reservation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil
	}
	if err := appendHistory(ctx, tx, id, uuid.Nil, models.ActionExpired, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListHistory returns a reservation's immutable audit trail, oldest first.
func (r *ReservationRepository) ListHistory(ctx context.Context, reservationID uuid.UUID) ([]*models.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, reservation_id, action, actor, details, created_at
		FROM reservation_history WHERE reservation_id = $1 ORDER BY created_at ASC`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation history: %w", err)
	}
	defer rows.Close()

	var out []*models.HistoryEntry
	for rows.Next() {
		h := &models.HistoryEntry{}
		if err := rows.Scan(&h.ID, &h.ReservationID, &h.Action, &h.Actor, &h.Details, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
