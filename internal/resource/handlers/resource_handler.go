// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotforge/pkg/apierror"
	"github.com/slotforge/pkg/httputil"
	"github.com/slotforge/pkg/validator"
	"github.com/slotforge/slotforge/internal/resource/models"
	"github.com/slotforge/slotforge/internal/resource/service"
)

// ResourceHandler handles resource HTTP requests.
type ResourceHandler struct {
	service *service.ResourceService
	logger  *slog.Logger
}

// NewResourceHandler creates a new resource handler.
func NewResourceHandler(service *service.ResourceService, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{service: service, logger: logger}
}

func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateResourceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	res, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrResourceAlreadyExists) {
			apierror.Write(w, apierror.New(apierror.Conflict, "resource with this name already exists"))
			return
		}
		h.logger.Error("create resource failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to create resource"))
		return
	}

	httputil.JSON(w, http.StatusCreated, res)
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.NotFound, "resource not found"))
		return
	}
	httputil.JSON(w, http.StatusOK, res)
}

func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list resources failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list resources"))
		return
	}
	httputil.JSON(w, http.StatusOK, resources)
}

func (h *ResourceHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	resources, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.logger.Error("search resources failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to search resources"))
		return
	}
	httputil.JSON(w, http.StatusOK, resources)
}

func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	var req models.UpdateResourceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	res, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrResourceNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "resource not found"))
		case errors.Is(err, service.ErrResourceAlreadyExists):
			apierror.Write(w, apierror.New(apierror.Conflict, "resource with this name already exists"))
		default:
			h.logger.Error("update resource failed", "error", err, "resource_id", id)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to update resource"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrResourceNotFound) {
			apierror.Write(w, apierror.New(apierror.NotFound, "resource not found"))
			return
		}
		h.logger.Error("delete resource failed", "error", err, "resource_id", id)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to delete resource"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "resource deleted"})
}

func (h *ResourceHandler) SetBusinessHours(w http.ResponseWriter, r *http.Request) {
	var resourceID *uuid.UUID
	if idParam := chi.URLParam(r, "id"); idParam != "" {
		id, err := uuid.Parse(idParam)
		if err != nil {
			apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
			return
		}
		resourceID = &id
	}

	var req models.SetBusinessHoursRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	if err := h.service.SetBusinessHours(r.Context(), resourceID, req.Hours); err != nil {
		h.logger.Error("set business hours failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to set business hours"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "business hours updated"})
}

func (h *ResourceHandler) CreateBlackout(w http.ResponseWriter, r *http.Request) {
	var resourceID *uuid.UUID
	if idParam := chi.URLParam(r, "id"); idParam != "" {
		id, err := uuid.Parse(idParam)
		if err != nil {
			apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
			return
		}
		resourceID = &id
	}

	var req models.CreateBlackoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "date must be YYYY-MM-DD"))
		return
	}

	blackout, err := h.service.CreateBlackout(r.Context(), resourceID, date, req.Reason)
	if err != nil {
		h.logger.Error("create blackout failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to create blackout"))
		return
	}

	httputil.JSON(w, http.StatusCreated, blackout)
}

func (h *ResourceHandler) DeleteBlackout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "blackout_id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid blackout id"))
		return
	}

	if err := h.service.DeleteBlackout(r.Context(), id); err != nil {
		h.logger.Error("delete blackout failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to delete blackout"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "blackout deleted"})
}
