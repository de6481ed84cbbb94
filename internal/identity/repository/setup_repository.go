// SPDX-License-Identifier: BSL-1.1

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/slotforge/internal/identity/models"
)

// SetupRepository persists the singleton first-admin bootstrap gate
// described by spec §4.1. There is exactly one row, seeded by a
// migration, with a fixed id of 1.
type SetupRepository struct {
	pool *pgxpool.Pool
}

// NewSetupRepository creates a new setup repository.
func NewSetupRepository(pool *pgxpool.Pool) *SetupRepository {
	return &SetupRepository{pool: pool}
}

// Get retrieves the singleton setup state.
func (r *SetupRepository) Get(ctx context.Context) (*models.SetupState, error) {
	state := &models.SetupState{}
	err := r.pool.QueryRow(ctx, `SELECT setup_complete, setup_reopened, unlock_token_hash FROM setup_state WHERE id = 1`).
		Scan(&state.SetupComplete, &state.SetupReopened, &state.UnlockTokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.SetupState{}, nil
		}
		return nil, fmt.Errorf("failed to get setup state: %w", err)
	}
	return state, nil
}

// Update persists the singleton setup state, upserting the seed row if
// it is somehow missing.
func (r *SetupRepository) Update(ctx context.Context, state *models.SetupState) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO setup_state (id, setup_complete, setup_reopened, unlock_token_hash)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			setup_complete = EXCLUDED.setup_complete,
			setup_reopened = EXCLUDED.setup_reopened,
			unlock_token_hash = EXCLUDED.unlock_token_hash`,
		state.SetupComplete, state.SetupReopened, state.UnlockTokenHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update setup state: %w", err)
	}
	return nil
}
