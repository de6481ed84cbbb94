// SPDX-License-Identifier: BSL-1.1

// Package service implements the webhook dispatcher (§4.6): it
// subscribes to every event published on the bus, fans matching
// events out to a bounded worker pool, signs each request body with
// the subscriber's HMAC secret, and retries failed deliveries on an
// exponential backoff schedule until they succeed or are given up on.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/slotforge/slotforge/internal/config"
	"github.com/slotforge/slotforge/internal/webhook/models"
	"github.com/slotforge/slotforge/internal/webhook/repository"
)

var (
	ErrWebhookNotFound = repository.ErrWebhookNotFound
	ErrNotRetryable    = errors.New("delivery is not in a retryable state")
)

// retrySchedule is the §4.6 backoff: attempt 0 fires immediately, each
// subsequent entry is the delay before the next attempt. len() bounds
// the max attempt count together with cfg.MaxAttempts.
var retrySchedule = []time.Duration{
	0,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

const responseSnippetLimit = 1024

// Dispatcher fans out published events to registered webhooks. It has
// no dependency on the event bus's concrete type: cmd/main.go
// subscribes to the bus itself and forwards each event into
// HandleEvent, keeping the dependency one-directional.
type Dispatcher struct {
	webhooks  *repository.WebhookRepository
	client    *resty.Client
	jobs      chan deliveryJob
	maxAttempt int
	disableAt int
	logger    *slog.Logger
	wg        sync.WaitGroup
	stop      chan struct{}
}

type deliveryJob struct {
	webhook *models.Webhook
	delivery *models.Delivery
}

// NewDispatcher creates a new webhook dispatcher with its worker pool
// unstarted; call Start to begin draining.
func NewDispatcher(webhooks *repository.WebhookRepository, cfg *config.WebhookConfig, logger *slog.Logger) *Dispatcher {
	client := resty.New().SetTimeout(cfg.RequestTimeout)

	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 8
	}
	maxAttempt := cfg.MaxAttempts
	if maxAttempt <= 0 || maxAttempt > len(retrySchedule) {
		maxAttempt = len(retrySchedule)
	}

	return &Dispatcher{
		webhooks:   webhooks,
		client:     client,
		jobs:       make(chan deliveryJob, workers*4),
		maxAttempt: maxAttempt,
		disableAt:  cfg.ConsecutiveFailuresToDisable,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start launches the worker pool and the retry-sweep loop.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 8
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	go d.retryLoop(ctx)
}

// Stop signals the worker pool and retry loop to exit and waits for
// in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()
}

// HandleEvent enqueues a delivery for every active webhook subscribed
// to eventType. Called from cmd/main.go's subscription goroutine for
// each event the bus delivers, not from the publish path itself.
func (d *Dispatcher) HandleEvent(ctx context.Context, eventType string, data interface{}) {
	webhooks, err := d.webhooks.ActiveMatching(ctx, eventType)
	if err != nil {
		d.logger.Error("failed to list webhooks for event", "event_type", eventType, "error", err)
		return
	}
	if len(webhooks) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event":     eventType,
		"timestamp": time.Now(),
		"data":      data,
	})
	if err != nil {
		d.logger.Error("failed to marshal webhook payload", "event_type", eventType, "error", err)
		return
	}

	for _, w := range webhooks {
		delivery := &models.Delivery{
			WebhookID: w.ID,
			EventType: eventType,
			Payload:   payload,
			Status:    models.DeliveryPending,
			Attempt:   0,
		}
		delivery.ID = uuid.New()
		if err := d.webhooks.CreateDelivery(ctx, delivery); err != nil {
			d.logger.Error("failed to create webhook delivery", "webhook_id", w.ID, "error", err)
			continue
		}
		d.enqueue(w, delivery)
	}
}

func (d *Dispatcher) enqueue(w *models.Webhook, delivery *models.Delivery) {
	select {
	case d.jobs <- deliveryJob{webhook: w, delivery: delivery}:
	default:
		d.logger.Warn("webhook dispatcher queue full, delivery will wait for the retry sweep", "webhook_id", w.ID, "delivery_id", delivery.ID)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.attempt(ctx, job.webhook, job.delivery)
		}
	}
}

// retryLoop periodically sweeps deliveries whose next_retry_at has
// come due and re-enqueues them. This is internal to the dispatcher,
// not one of the named §4.7 background tasks.
func (d *Dispatcher) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepDueRetries(ctx)
		}
	}
}

func (d *Dispatcher) sweepDueRetries(ctx context.Context) {
	due, err := d.webhooks.ListDueRetries(ctx, time.Now())
	if err != nil {
		d.logger.Error("failed to list due webhook retries", "error", err)
		return
	}
	for _, delivery := range due {
		w, err := d.webhooks.GetByID(ctx, delivery.WebhookID)
		if err != nil || !w.Active {
			continue
		}
		d.enqueue(w, delivery)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, w *models.Webhook, delivery *models.Delivery) {
	signature := sign(w.Secret, delivery.Payload)

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Webhook-Signature", "sha256="+signature).
		SetBody(delivery.Payload).
		Post(w.URL)

	delivery.Attempt++

	succeeded := err == nil && resp != nil && resp.StatusCode() >= 200 && resp.StatusCode() < 300
	if resp != nil {
		code := resp.StatusCode()
		delivery.StatusCode = &code
		delivery.ResponseBody = snippet(resp.Body())
	} else if err != nil {
		delivery.ResponseBody = snippet([]byte(err.Error()))
	}

	switch {
	case succeeded:
		delivery.Status = models.DeliverySuccess
		delivery.NextRetryAt = nil
		if updateErr := d.webhooks.UpdateDelivery(ctx, delivery); updateErr != nil {
			d.logger.Error("failed to record webhook delivery success", "delivery_id", delivery.ID, "error", updateErr)
		}
		if resetErr := d.webhooks.ResetConsecutiveFailures(ctx, w.ID); resetErr != nil {
			d.logger.Error("failed to reset webhook failure streak", "webhook_id", w.ID, "error", resetErr)
		}
	case delivery.Attempt >= d.maxAttempt:
		delivery.Status = models.DeliveryGivenUp
		delivery.NextRetryAt = nil
		if updateErr := d.webhooks.UpdateDelivery(ctx, delivery); updateErr != nil {
			d.logger.Error("failed to record webhook delivery give-up", "delivery_id", delivery.ID, "error", updateErr)
		}
		if failErr := d.webhooks.IncrementConsecutiveFailures(ctx, w.ID, d.disableAt); failErr != nil {
			d.logger.Error("failed to record webhook failure", "webhook_id", w.ID, "error", failErr)
		}
	default:
		delivery.Status = models.DeliveryPending
		next := time.Now().Add(backoffFor(delivery.Attempt))
		delivery.NextRetryAt = &next
		if updateErr := d.webhooks.UpdateDelivery(ctx, delivery); updateErr != nil {
			d.logger.Error("failed to record webhook delivery retry", "delivery_id", delivery.ID, "error", updateErr)
		}
	}
}

// RetryNow resets a delivery's attempt counter and re-enqueues it
// immediately, for the manual-retry endpoint (§4.6 "manual retry
// resets the attempt counter").
func (d *Dispatcher) RetryNow(ctx context.Context, webhookID, deliveryID uuid.UUID) error {
	w, err := d.webhooks.GetByID(ctx, webhookID)
	if err != nil {
		return err
	}
	delivery, err := d.webhooks.GetDelivery(ctx, webhookID, deliveryID)
	if err != nil {
		return err
	}
	if delivery.Status == models.DeliverySuccess {
		return ErrNotRetryable
	}

	delivery.Attempt = 0
	delivery.Status = models.DeliveryPending
	delivery.NextRetryAt = nil
	if err := d.webhooks.UpdateDelivery(ctx, delivery); err != nil {
		return err
	}

	d.enqueue(w, delivery)
	return nil
}

func backoffFor(attempt int) time.Duration {
	if attempt < 0 || attempt >= len(retrySchedule) {
		return retrySchedule[len(retrySchedule)-1]
	}
	return retrySchedule[attempt]
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func snippet(body []byte) string {
	if len(body) > responseSnippetLimit {
		return string(body[:responseSnippetLimit])
	}
	return string(body)
}
