// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotforge/pkg/apierror"
	"github.com/slotforge/pkg/httputil"
	"github.com/slotforge/pkg/middleware"
	"github.com/slotforge/slotforge/internal/notification/repository"
	"github.com/slotforge/slotforge/internal/notification/service"
)

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	service *service.NotificationService
	logger  *slog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(service *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, logger: logger}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return uuid.Nil, errors.New("unauthenticated")
	}
	return uuid.Parse(userID)
}

// ListMine handles GET /notifications.
func (h *NotificationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	notifications, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.logger.Error("list notifications failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list notifications"))
		return
	}

	httputil.JSON(w, http.StatusOK, notifications)
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid notification id"))
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			apierror.Write(w, apierror.New(apierror.NotFound, "notification not found"))
			return
		}
		h.logger.Error("mark notification read failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to mark notification read"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "notification marked read"})
}

// MarkAllRead handles POST /notifications/mark-all-read.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	if err := h.service.MarkAllRead(r.Context(), userID); err != nil {
		h.logger.Error("mark all notifications read failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to mark all notifications read"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "all notifications marked read"})
}
