// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"net/http"

	"github.com/slotforge/pkg/httputil"
)

// HealthHandler handles health check requests
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health returns a simple health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "availability",
	})
}

// Ready returns a readiness check
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"service": "availability",
	})
}
