// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotforge/pkg/apierror"
	"github.com/slotforge/pkg/httputil"
	"github.com/slotforge/pkg/validator"
	"github.com/slotforge/slotforge/internal/webhook/models"
	"github.com/slotforge/slotforge/internal/webhook/repository"
	"github.com/slotforge/slotforge/internal/webhook/service"
)

// WebhookHandler handles webhook subscription and delivery-history
// HTTP requests. Registration is admin-only, enforced by route-level
// middleware (the handler itself trusts the caller's role).
type WebhookHandler struct {
	webhooks   *repository.WebhookRepository
	dispatcher *service.Dispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(webhooks *repository.WebhookRepository, dispatcher *service.Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, dispatcher: dispatcher, logger: logger}
}

// Register handles POST /webhooks.
func (h *WebhookHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterWebhookRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	secret, err := generateSecret()
	if err != nil {
		h.logger.Error("failed to generate webhook secret", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to register webhook"))
		return
	}

	webhook := &models.Webhook{
		URL:        req.URL,
		EventTypes: req.EventTypes,
		Secret:     secret,
		Active:     true,
	}
	webhook.ID = uuid.New()

	if err := h.webhooks.Create(r.Context(), webhook); err != nil {
		h.logger.Error("failed to create webhook", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to register webhook"))
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]interface{}{
		"id":          webhook.ID,
		"url":         webhook.URL,
		"event_types": webhook.EventTypes,
		"active":      webhook.Active,
		"secret":      secret,
	})
}

// List handles GET /webhooks.
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.webhooks.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list webhooks", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list webhooks"))
		return
	}
	httputil.JSON(w, http.StatusOK, webhooks)
}

// Update handles PATCH /webhooks/{id}.
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid webhook id"))
		return
	}

	var req models.UpdateWebhookRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	webhook, err := h.webhooks.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	if req.URL != nil {
		webhook.URL = *req.URL
	}
	if req.EventTypes != nil {
		webhook.EventTypes = req.EventTypes
	}
	if req.Active != nil {
		webhook.Active = *req.Active
		if webhook.Active {
			webhook.ConsecutiveFailures = 0
		}
	}

	if err := h.webhooks.Update(r.Context(), webhook); err != nil {
		h.writeLookupError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, webhook)
}

// Delete handles DELETE /webhooks/{id}.
func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid webhook id"))
		return
	}

	if err := h.webhooks.Delete(r.Context(), id); err != nil {
		h.writeLookupError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "webhook deleted"})
}

// ListDeliveries handles GET /webhooks/{id}/deliveries.
func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid webhook id"))
		return
	}

	deliveries, err := h.webhooks.ListDeliveries(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list webhook deliveries", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list deliveries"))
		return
	}

	httputil.JSON(w, http.StatusOK, deliveries)
}

// RetryDelivery handles POST /webhooks/{id}/deliveries/{deliveryId}/retry.
func (h *WebhookHandler) RetryDelivery(w http.ResponseWriter, r *http.Request) {
	webhookID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid webhook id"))
		return
	}
	deliveryID, err := uuid.Parse(chi.URLParam(r, "deliveryId"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid delivery id"))
		return
	}

	if err := h.dispatcher.RetryNow(r.Context(), webhookID, deliveryID); err != nil {
		switch {
		case errors.Is(err, repository.ErrWebhookNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "webhook not found"))
		case errors.Is(err, service.ErrNotRetryable):
			apierror.Write(w, apierror.New(apierror.Precondition, err.Error()))
		default:
			h.logger.Error("failed to retry webhook delivery", "error", err)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to retry delivery"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "retry enqueued"})
}

func (h *WebhookHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrWebhookNotFound) {
		apierror.Write(w, apierror.New(apierror.NotFound, "webhook not found"))
		return
	}
	h.logger.Error("webhook operation failed", "error", err)
	apierror.Write(w, apierror.New(apierror.Internal, "webhook operation failed"))
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
