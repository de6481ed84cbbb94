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
	"github.com/slotforge/pkg/validator"
	"github.com/slotforge/slotforge/internal/waitlist/models"
	"github.com/slotforge/slotforge/internal/waitlist/service"
)

// WaitlistHandler handles waitlist HTTP requests.
type WaitlistHandler struct {
	service *service.WaitlistService
	logger  *slog.Logger
}

// NewWaitlistHandler creates a new waitlist handler.
func NewWaitlistHandler(service *service.WaitlistService, logger *slog.Logger) *WaitlistHandler {
	return &WaitlistHandler{service: service, logger: logger}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return uuid.Nil, errors.New("unauthenticated")
	}
	return uuid.Parse(userID)
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	var req models.JoinRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	entry, err := h.service.Join(r.Context(), userID, req)
	if err != nil {
		h.logger.Error("waitlist join failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	httputil.JSON(w, http.StatusCreated, entry)
}

func (h *WaitlistHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	entries, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.logger.Error("list waitlist entries failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list waitlist entries"))
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

func (h *WaitlistHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid waitlist entry id"))
		return
	}

	reservationID, err := h.service.Accept(r.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEntryNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "waitlist entry not found"))
		case errors.Is(err, service.ErrNotOwner):
			apierror.Write(w, apierror.New(apierror.Forbidden, err.Error()))
		case errors.Is(err, service.ErrNotOffered):
			apierror.Write(w, apierror.New(apierror.Precondition, err.Error()))
		default:
			apierror.Write(w, apierror.New(apierror.Conflict, "the offered interval is no longer available"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"reservation_id": reservationID.String()})
}

func (h *WaitlistHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid waitlist entry id"))
		return
	}

	if err := h.service.Leave(r.Context(), userID, id); err != nil {
		switch {
		case errors.Is(err, service.ErrEntryNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "waitlist entry not found"))
		case errors.Is(err, service.ErrNotOwner):
			apierror.Write(w, apierror.New(apierror.Forbidden, err.Error()))
		default:
			apierror.Write(w, apierror.New(apierror.Internal, "failed to leave waitlist"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "left waitlist"})
}
