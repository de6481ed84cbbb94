// SPDX-License-Identifier: BSL-1.1

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotforge/slotforge/internal/webhook/models"
)

var ErrWebhookNotFound = errors.New("webhook not found")

const webhookColumns = `id, url, event_types, secret, active, consecutive_failures, created_at, updated_at`

// WebhookRepository persists webhook subscriptions and their delivery
// history.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new webhook repository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func scanWebhook(row pgx.Row) (*models.Webhook, error) {
	w := &models.Webhook{}
	err := row.Scan(&w.ID, &w.URL, &w.EventTypes, &w.Secret, &w.Active, &w.ConsecutiveFailures, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}
	return w, nil
}

// Create registers a new webhook.
func (r *WebhookRepository) Create(ctx context.Context, w *models.Webhook) error {
	query := `
		INSERT INTO webhooks (id, url, event_types, secret, active, consecutive_failures)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, w.ID, w.URL, w.EventTypes, w.Secret, w.Active, w.ConsecutiveFailures).
		Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// GetByID fetches a webhook by id.
func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	return scanWebhook(r.pool.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id))
}

// List returns every registered webhook.
func (r *WebhookRepository) List(ctx context.Context) ([]*models.Webhook, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ActiveMatching returns every active webhook subscribed to eventType
// (including wildcard subscribers), for dispatch fan-out.
func (r *WebhookRepository) ActiveMatching(ctx context.Context, eventType string) ([]*models.Webhook, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+webhookColumns+` FROM webhooks
		WHERE active = true AND (event_types = '{}' OR $1 = ANY(event_types))`, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to list matching webhooks: %w", err)
	}
	defer rows.Close()

	var out []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Update applies a partial update to a webhook.
func (r *WebhookRepository) Update(ctx context.Context, w *models.Webhook) error {
	query := `
		UPDATE webhooks SET url = $2, event_types = $3, active = $4, consecutive_failures = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, w.ID, w.URL, w.EventTypes, w.Active, w.ConsecutiveFailures).Scan(&w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWebhookNotFound
		}
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

// IncrementConsecutiveFailures bumps the failure counter and disables
// the webhook once it reaches threshold (§4.6 auto-disable).
func (r *WebhookRepository) IncrementConsecutiveFailures(ctx context.Context, id uuid.UUID, threshold int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhooks SET
			consecutive_failures = consecutive_failures + 1,
			active = CASE WHEN consecutive_failures + 1 >= $2 THEN false ELSE active END,
			updated_at = NOW()
		WHERE id = $1`, id, threshold)
	if err != nil {
		return fmt.Errorf("failed to record webhook failure: %w", err)
	}
	return nil
}

// ResetConsecutiveFailures clears the failure streak after a success.
func (r *WebhookRepository) ResetConsecutiveFailures(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE webhooks SET consecutive_failures = 0, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to reset webhook failure streak: %w", err)
	}
	return nil
}

// Delete removes a webhook and its delivery history.
func (r *WebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// CreateDelivery inserts a new delivery attempt row.
func (r *WebhookRepository) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event_type, payload, status, attempt, status_code, response_snippet, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		d.ID, d.WebhookID, d.EventType, d.Payload, d.Status, d.Attempt, d.StatusCode, d.ResponseBody, d.NextRetryAt,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook delivery: %w", err)
	}
	return nil
}

// UpdateDelivery records the outcome of a (re)attempt.
func (r *WebhookRepository) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE webhook_deliveries SET
			status = $2, attempt = $3, status_code = $4, response_snippet = $5, next_retry_at = $6
		WHERE id = $1`,
		d.ID, d.Status, d.Attempt, d.StatusCode, d.ResponseBody, d.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook delivery: %w", err)
	}
	return nil
}

// GetDelivery fetches a single delivery by id, scoped to its webhook.
func (r *WebhookRepository) GetDelivery(ctx context.Context, webhookID, id uuid.UUID) (*models.Delivery, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, webhook_id, event_type, payload, status, attempt, status_code, response_snippet, next_retry_at, created_at
		FROM webhook_deliveries WHERE id = $1 AND webhook_id = $2`, id, webhookID)
	return scanDelivery(row)
}

// ListDeliveries returns a webhook's delivery history, newest first.
func (r *WebhookRepository) ListDeliveries(ctx context.Context, webhookID uuid.UUID) ([]*models.Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, webhook_id, event_type, payload, status, attempt, status_code, response_snippet, next_retry_at, created_at
		FROM webhook_deliveries WHERE webhook_id = $1 ORDER BY created_at DESC`, webhookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

// ListDueRetries returns deliveries awaiting a retry at or before now.
func (r *WebhookRepository) ListDueRetries(ctx context.Context, now time.Time) ([]*models.Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, webhook_id, event_type, payload, status, attempt, status_code, response_snippet, next_retry_at, created_at
		FROM webhook_deliveries WHERE status = $1 AND next_retry_at <= $2`, models.DeliveryPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due webhook retries: %w", err)
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func scanDelivery(row pgx.Row) (*models.Delivery, error) {
	d := &models.Delivery{}
	err := row.Scan(&d.ID, &d.WebhookID, &d.EventType, &d.Payload, &d.Status, &d.Attempt, &d.StatusCode, &d.ResponseBody, &d.NextRetryAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("webhook delivery not found")
		}
		return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
	}
	return d, nil
}

func scanDeliveries(rows pgx.Rows) ([]*models.Delivery, error) {
	var out []*models.Delivery
	for rows.Next() {
		d := &models.Delivery{}
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.EventType, &d.Payload, &d.Status, &d.Attempt, &d.StatusCode, &d.ResponseBody, &d.NextRetryAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
