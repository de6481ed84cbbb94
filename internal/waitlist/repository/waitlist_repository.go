// SPDX-License-Identifier: BSL-1.1

// Package repository persists waitlist entries and the FIFO position
// sequence per resource (§4.4).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/slotforge/internal/waitlist/models"
)

var (
	ErrEntryNotFound = errors.New("waitlist entry not found")
)

// WaitlistRepository handles waitlist entry persistence.
type WaitlistRepository struct {
	pool *pgxpool.Pool
}

// NewWaitlistRepository creates a new waitlist repository.
func NewWaitlistRepository(pool *pgxpool.Pool) *WaitlistRepository {
	return &WaitlistRepository{pool: pool}
}

const entryColumns = `id, user_id, resource_id, desired_start, desired_end, flexible_time,
	position, state, offer_expires_at, created_at, updated_at`

func scanEntry(row pgx.Row) (*models.Entry, error) {
	e := &models.Entry{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.ResourceID, &e.DesiredStart, &e.DesiredEnd, &e.FlexibleTime,
		&e.Position, &e.State, &e.OfferExpiresAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
	}
	return e, nil
}

// Join inserts a new waiting entry at the next FIFO position for its resource.
func (r *WaitlistRepository) Join(ctx context.Context, e *models.Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin join transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var nextPosition int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE resource_id = $1`, e.ResourceID).Scan(&nextPosition)
	if err != nil {
		return fmt.Errorf("failed to determine next waitlist position: %w", err)
	}
	e.Position = nextPosition

	query := `
		INSERT INTO waitlist_entries (id, user_id, resource_id, desired_start, desired_end, flexible_time, position, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err = tx.QueryRow(ctx, query, e.ID, e.UserID, e.ResourceID, e.DesiredStart, e.DesiredEnd, e.FlexibleTime, e.Position, e.State,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert waitlist entry: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a waitlist entry by id.
func (r *WaitlistRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM waitlist_entries WHERE id = $1`
	return scanEntry(r.pool.QueryRow(ctx, query, id))
}

// WaitingFIFO returns the waiting entries for a resource in FIFO order,
// for the promotion algorithm (§4.4).
func (r *WaitlistRepository) WaitingFIFO(ctx context.Context, resourceID uuid.UUID) ([]*models.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE resource_id = $1 AND state = 'waiting'
		ORDER BY position ASC`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByUser returns a user's waitlist entries.
func (r *WaitlistRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]*models.Entry, error) {
	var out []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Offer transitions an entry waiting -> offered, stamping offer_expires_at.
func (r *WaitlistRepository) Offer(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE waitlist_entries SET state = 'offered', offer_expires_at = $2, updated_at = NOW()
		WHERE id = $1 AND state = 'waiting'`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to offer waitlist entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Accept transitions an entry offered -> accepted.
func (r *WaitlistRepository) Accept(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE waitlist_entries SET state = 'accepted', updated_at = NOW() WHERE id = $1 AND state = 'offered'`, id)
	if err != nil {
		return fmt.Errorf("failed to accept waitlist entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ExpireOffer transitions an entry offered -> expired.
func (r *WaitlistRepository) ExpireOffer(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE waitlist_entries SET state = 'expired', updated_at = NOW() WHERE id = $1 AND state = 'offered'`, id)
	if err != nil {
		return fmt.Errorf("failed to expire waitlist offer: %w", err)
	}
	return nil
}

// Leave transitions an entry to left, owner-initiated.
func (r *WaitlistRepository) Leave(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE waitlist_entries SET state = 'left', updated_at = NOW()
		WHERE id = $1 AND state IN ('waiting', 'offered')`, id)
	if err != nil {
		return fmt.Errorf("failed to leave waitlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ListExpiredOffers returns offered entries past their expiry, for the
// §4.7 waitlist-offer-expire sweep.
func (r *WaitlistRepository) ListExpiredOffers(ctx context.Context, now time.Time) ([]*models.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM waitlist_entries
		WHERE state = 'offered' AND offer_expires_at <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired waitlist offers: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}
