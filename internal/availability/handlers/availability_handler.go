// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotforge/pkg/apierror"
	"github.com/slotforge/pkg/httputil"
	"github.com/slotforge/slotforge/internal/availability/service"
)

// AvailabilityHandler handles availability projection HTTP requests.
type AvailabilityHandler struct {
	service *service.AvailabilityService
	logger  *slog.Logger
}

// NewAvailabilityHandler creates a new availability handler.
func NewAvailabilityHandler(service *service.AvailabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, logger: logger}
}

func parseResourceID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// Schedule handles GET /resources/{id}/schedule?from=&to=&granularity_minutes=.
func (h *AvailabilityHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	resourceID, err := parseResourceID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	from, to, ok := parseWindow(w, r)
	if !ok {
		return
	}

	granularity := 30 * time.Minute
	if v := r.URL.Query().Get("granularity_minutes"); v != "" {
		minutes, err := time.ParseDuration(v + "m")
		if err != nil {
			apierror.Write(w, apierror.New(apierror.Validation, "invalid granularity_minutes"))
			return
		}
		granularity = minutes
	}

	slots, err := h.service.Schedule(r.Context(), resourceID, from, to, granularity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, slots)
}

// AvailableSlots handles GET /resources/{id}/available-slots?date=.
func (h *AvailabilityHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	resourceID, err := parseResourceID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid or missing date, expected YYYY-MM-DD"))
		return
	}

	slots, err := h.service.AvailableSlots(r.Context(), resourceID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, slots)
}

// NextAvailable handles GET /resources/{id}/next-available?min_duration_minutes=.
func (h *AvailabilityHandler) NextAvailable(w http.ResponseWriter, r *http.Request) {
	resourceID, err := parseResourceID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	minDuration := 30 * time.Minute
	if v := r.URL.Query().Get("min_duration_minutes"); v != "" {
		parsed, err := time.ParseDuration(v + "m")
		if err != nil {
			apierror.Write(w, apierror.New(apierror.Validation, "invalid min_duration_minutes"))
			return
		}
		minDuration = parsed
	}

	start, err := h.service.NextAvailable(r.Context(), resourceID, minDuration)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"next_available": start})
}

// Status handles GET /resources/{id}/status.
func (h *AvailabilityHandler) Status(w http.ResponseWriter, r *http.Request) {
	resourceID, err := parseResourceID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	status, err := h.service.Status(r.Context(), resourceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// Availability handles GET /resources/{id}/availability?from=&to=,
// defaulting to the whole current day (midnight to midnight) when both
// from and to are omitted.
func (h *AvailabilityHandler) Availability(w http.ResponseWriter, r *http.Request) {
	resourceID, err := parseResourceID(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid resource id"))
		return
	}

	from, to := defaultDayWindow(time.Now())
	if r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "" {
		var ok bool
		from, to, ok = parseWindow(w, r)
		if !ok {
			return
		}
	}

	availability, err := h.service.Availability(r.Context(), resourceID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, availability)
}

func defaultDayWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.Add(24 * time.Hour)
}

// Summary handles GET /resources/summary.
func (h *AvailabilityHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid or missing from, expected RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid or missing to, expected RFC3339"))
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, err error) {
	switch err {
	case service.ErrResourceNotFound:
		apierror.Write(w, apierror.New(apierror.NotFound, "resource not found"))
	case service.ErrInvalidWindow, service.ErrInvalidGranularity:
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
	default:
		h.logger.Error("availability query failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to compute availability"))
	}
}
