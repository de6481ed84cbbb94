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
	"github.com/slotforge/slotforge/internal/reservation/models"
	"github.com/slotforge/slotforge/internal/reservation/repository"
	"github.com/slotforge/slotforge/internal/reservation/service"
)

// ReservationHandler handles reservation HTTP requests.
type ReservationHandler struct {
	service *service.ReservationService
	logger  *slog.Logger
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(service *service.ReservationService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, logger: logger}
}

func callerFromContext(r *http.Request) (uuid.UUID, string, error) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return uuid.Nil, "", errors.New("unauthenticated")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, middleware.GetUserRole(r.Context()), nil
}

func (h *ReservationHandler) writeServiceError(w http.ResponseWriter, err error) {
	var conflict *repository.ConflictError
	switch {
	case errors.As(err, &conflict):
		ids := make([]string, len(conflict.OverlappingIDs))
		for i, id := range conflict.OverlappingIDs {
			ids[i] = id.String()
		}
		apierror.Write(w, apierror.New(apierror.Conflict, "reservation overlaps an existing booking").
			WithExtra(map[string]interface{}{"overlapping_ids": ids}))
	case errors.Is(err, service.ErrReservationNotFound):
		apierror.Write(w, apierror.New(apierror.NotFound, "reservation not found"))
	case errors.Is(err, service.ErrNotOwner):
		apierror.Write(w, apierror.New(apierror.Forbidden, err.Error()))
	case errors.Is(err, service.ErrQuotaExceeded):
		apierror.Write(w, apierror.New(apierror.QuotaExceeded, err.Error()))
	case errors.Is(err, service.ErrResourceInactive),
		errors.Is(err, service.ErrBlackout),
		errors.Is(err, service.ErrOutsideHours),
		errors.Is(err, service.ErrAlreadyStarted):
		apierror.Write(w, apierror.New(apierror.Precondition, err.Error()))
	case errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrWindowTooShort),
		errors.Is(err, service.ErrWindowTooLong),
		errors.Is(err, service.ErrInThePast),
		errors.Is(err, service.ErrRecurrenceBounds):
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
	default:
		h.logger.Error("reservation operation failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to process reservation"))
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, role, err := callerFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	var req models.CreateReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	res, err := h.service.Create(r.Context(), userID, role, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, res)
}

func (h *ReservationHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, role, err := callerFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	var req models.CreateRecurringReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	instances, err := h.service.CreateRecurring(r.Context(), userID, role, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, instances)
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _, err := callerFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	reservations, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.logger.Error("list reservations failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list reservations"))
		return
	}

	httputil.JSON(w, http.StatusOK, reservations)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, role, err := callerFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid reservation id"))
		return
	}

	var req models.CancelReservationRequest
	_ = httputil.DecodeJSON(r, &req)

	res, err := h.service.Cancel(r.Context(), userID, role, id, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid reservation id"))
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.logger.Error("list reservation history failed", "error", err, "reservation_id", id)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list history"))
		return
	}

	httputil.JSON(w, http.StatusOK, history)
}
