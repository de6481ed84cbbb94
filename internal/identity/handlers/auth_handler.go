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
	"github.com/slotforge/slotforge/internal/identity/models"
	"github.com/slotforge/slotforge/internal/identity/service"
)

// AuthHandler handles identity HTTP requests: registration, login,
// refresh rotation, logout and the setup gate.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return uuid.Nil, errors.New("unauthenticated")
	}
	return uuid.Parse(userID)
}

// Register creates a new user account. Corresponds to POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			apierror.Write(w, apierror.New(apierror.Conflict, "username already taken"))
		case errors.Is(err, service.ErrWeakPassword):
			apierror.Write(w, apierror.New(apierror.Validation, "password does not meet policy"))
		default:
			h.logger.Error("register failed", "error", err)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to register"))
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, user.ToResponse())
}

// Token authenticates username/password (+ optional mfa_code) and
// issues an access/refresh pair. Corresponds to POST /token, a
// form-urlencoded endpoint per the OAuth2-password-grant convention.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid form body"))
		return
	}

	req := models.TokenRequest{
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
		MFACode:  r.FormValue("mfa_code"),
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	tokens, err := h.service.Login(r.Context(), req.Username, req.Password, req.MFACode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMFARequired):
			apierror.Write(w, apierror.New(apierror.MFARequired, "mfa code required"))
		case errors.Is(err, service.ErrMFAInvalid):
			apierror.Write(w, apierror.New(apierror.MFAInvalid, "invalid mfa code"))
		case errors.Is(err, service.ErrInvalidCredentials):
			apierror.Write(w, apierror.New(apierror.Unauthenticated, "invalid username or password"))
		default:
			h.logger.Error("login failed", "error", err)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to authenticate"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// Refresh rotates a refresh token. Corresponds to
// POST /token/refresh?refresh_token=....
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.URL.Query().Get("refresh_token")
	if refreshToken == "" {
		apierror.Write(w, apierror.New(apierror.Validation, "refresh_token query parameter is required"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "invalid or expired refresh token"))
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// Logout revokes every refresh token owned by the caller. Corresponds
// to POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		h.logger.Error("logout failed", "error", err, "user_id", userID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to logout"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword re-verifies the current password and stores a new
// one, invalidating every session, the caller's included.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,strongpassword,max=72"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			apierror.Write(w, apierror.New(apierror.Validation, "incorrect current password"))
		case errors.Is(err, service.ErrWeakPassword):
			apierror.Write(w, apierror.New(apierror.Validation, "password does not meet policy"))
		default:
			h.logger.Error("change password failed", "error", err, "user_id", userID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to change password"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// Me returns the caller's own profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
		return
	}

	httputil.JSON(w, http.StatusOK, user.ToResponse())
}

// SetupStatus reports whether the first-admin gate is still open.
// Corresponds to GET /setup/status.
func (h *AuthHandler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	state, count, err := h.service.SetupStatus(r.Context())
	if err != nil {
		h.logger.Error("get setup status failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to get setup status"))
		return
	}

	httputil.JSON(w, http.StatusOK, &models.SetupStatusResponse{
		SetupComplete: state.SetupComplete,
		SetupReopened: state.SetupReopened,
		UserCount:     count,
	})
}

// Initialize creates or promotes the first admin while the gate is
// open. Corresponds to POST /setup/initialize.
func (h *AuthHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req models.InitializeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if !req.Promote {
		if err := validator.Validate(&req); err != nil {
			apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
			return
		}
		if req.Password == "" {
			apierror.Write(w, apierror.New(apierror.Validation, "password is required"))
			return
		}
	}

	reopenToken := r.Header.Get("X-Setup-Token")

	admin, err := h.service.Initialize(r.Context(), req, reopenToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSetupLocked):
			apierror.Write(w, apierror.New(apierror.Precondition, "setup is locked"))
		case errors.Is(err, service.ErrSetupBadToken):
			apierror.Write(w, apierror.New(apierror.Unauthenticated, "invalid setup reopen token"))
		case errors.Is(err, service.ErrUserNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
		case errors.Is(err, service.ErrUsernameTaken):
			apierror.Write(w, apierror.New(apierror.Conflict, "username already taken"))
		case errors.Is(err, service.ErrWeakPassword):
			apierror.Write(w, apierror.New(apierror.Validation, "password does not meet policy"))
		default:
			h.logger.Error("setup initialize failed", "error", err)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to initialize"))
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, admin.ToResponse())
}

// --- Admin role management ---

// ListUsers returns every user. Admin-only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list users"))
		return
	}

	responses := make([]*models.UserResponse, len(users))
	for i, u := range users {
		responses[i] = u.ToResponse()
	}
	httputil.JSON(w, http.StatusOK, responses)
}

// UpdateRole changes a target user's role. Admin-only.
func (h *AuthHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid user id"))
		return
	}

	var req models.UpdateRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	if err := h.service.UpdateRole(r.Context(), id, req.Role); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
		case errors.Is(err, service.ErrInvalidRole):
			apierror.Write(w, apierror.New(apierror.Validation, "invalid role"))
		default:
			h.logger.Error("update role failed", "error", err, "target_user_id", id)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to update role"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}
