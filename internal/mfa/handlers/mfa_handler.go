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
	"github.com/slotforge/slotforge/internal/mfa/models"
	"github.com/slotforge/slotforge/internal/mfa/service"
)

// MFAHandler handles MFA HTTP requests
type MFAHandler struct {
	service *service.MFAService
	logger  *slog.Logger
}

// NewMFAHandler creates a new MFA handler
func NewMFAHandler(service *service.MFAService, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{service: service, logger: logger}
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return uuid.Nil, errors.New("unauthenticated")
	}
	return uuid.Parse(userID)
}

// BeginSetup generates a TOTP secret, QR code and backup codes for the
// caller. Corresponds to POST /auth/mfa/setup.
func (h *MFAHandler) BeginSetup(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	response, err := h.service.BeginSetup(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
		case errors.Is(err, service.ErrMFAAlreadyEnabled):
			apierror.Write(w, apierror.New(apierror.Conflict, "mfa already enabled"))
		default:
			h.logger.Error("begin mfa setup failed", "error", err, "user_id", userID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to begin mfa setup"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}

// FinishSetup proves possession of the TOTP secret and enables MFA.
// Corresponds to POST /auth/mfa/verify.
func (h *MFAHandler) FinishSetup(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	var req models.FinishSetupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	if err := h.service.FinishSetup(r.Context(), userID, req.Code); err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			apierror.Write(w, apierror.New(apierror.MFAInvalid, "invalid verification code"))
			return
		}
		h.logger.Error("finish mfa setup failed", "error", err, "user_id", userID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to enable mfa"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "mfa enabled"})
}

// Disable tears down MFA after re-verifying the caller's password.
// Corresponds to POST /auth/mfa/disable.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	var req models.DisableMFARequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}

	if err := h.service.Disable2FA(r.Context(), userID, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrWrongPassword):
			apierror.Write(w, apierror.New(apierror.Validation, "incorrect password"))
		case errors.Is(err, service.ErrMFANotEnabled):
			apierror.Write(w, apierror.New(apierror.Precondition, "mfa is not enabled"))
		default:
			h.logger.Error("disable mfa failed", "error", err, "user_id", userID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to disable mfa"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "mfa disabled"})
}

// GetStatus reports whether MFA is enabled for the caller.
func (h *MFAHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	status, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		h.logger.Error("get mfa status failed", "error", err, "user_id", userID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to get mfa status"))
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// RegenerateBackupCodes invalidates all prior backup codes atomically
// and issues a fresh set. Corresponds to POST /auth/mfa/backup-codes.
func (h *MFAHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	backupCodes, err := h.service.RegenerateBackupCodes(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrMFANotFound) || errors.Is(err, service.ErrMFANotEnabled) {
			apierror.Write(w, apierror.New(apierror.Precondition, "mfa is not enabled"))
			return
		}
		h.logger.Error("regenerate backup codes failed", "error", err, "user_id", userID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to regenerate backup codes"))
		return
	}

	httputil.JSON(w, http.StatusOK, &models.BackupCodesResponse{BackupCodes: backupCodes})
}

// AdminDisable tears down another user's MFA without their password.
// Corresponds to DELETE /admin/users/{id}/mfa, admin-only; an admin may
// not use it on their own account.
func (h *MFAHandler) AdminDisable(w http.ResponseWriter, r *http.Request) {
	adminUserID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	targetUserID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid user id"))
		return
	}

	if targetUserID == adminUserID {
		apierror.Write(w, apierror.New(apierror.Validation, "cannot disable your own mfa this way"))
		return
	}

	result, err := h.service.AdminDisable2FA(r.Context(), targetUserID, adminUserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
		case errors.Is(err, service.ErrMFANotEnabled):
			apierror.Write(w, apierror.New(apierror.Precondition, "user does not have mfa enabled"))
		default:
			h.logger.Error("admin disable mfa failed", "error", err, "target_user_id", targetUserID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to disable mfa"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
