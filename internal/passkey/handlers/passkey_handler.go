// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotforge/pkg/apierror"
	"github.com/slotforge/pkg/httputil"
	"github.com/slotforge/pkg/middleware"
	"github.com/slotforge/pkg/validator"
	identitymodels "github.com/slotforge/slotforge/internal/identity/models"
	"github.com/slotforge/slotforge/internal/passkey/models"
	"github.com/slotforge/slotforge/internal/passkey/service"
)

func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return uuid.Nil, errors.New("unauthenticated")
	}
	return uuid.Parse(userID)
}

// TokenIssuer completes a login given a user already authenticated by
// another factor — passkey possession satisfies it here, the same way
// a verified TOTP code does in the identity service's own login path.
type TokenIssuer interface {
	IssueTokenPair(ctx context.Context, user *identitymodels.User) (*identitymodels.TokenResponse, error)
}

// PasskeyHandler handles passkey HTTP requests
type PasskeyHandler struct {
	service *service.PasskeyService
	issuer  TokenIssuer
	logger  *slog.Logger
}

// NewPasskeyHandler creates a new passkey handler
func NewPasskeyHandler(service *service.PasskeyService, issuer TokenIssuer, logger *slog.Logger) *PasskeyHandler {
	return &PasskeyHandler{service: service, issuer: issuer, logger: logger}
}

func (h *PasskeyHandler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
			return
		}
		h.logger.Error("begin passkey registration failed", "error", err, "user_id", userID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to begin registration"))
		return
	}

	httputil.JSON(w, http.StatusOK, options)
}

func (h *PasskeyHandler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	passkey, err := h.service.FinishRegistration(r.Context(), userID, r)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "user not found"))
		case errors.Is(err, service.ErrInvalidCredential), errors.Is(err, service.ErrInvalidChallenge):
			apierror.Write(w, apierror.New(apierror.Validation, "invalid credential or challenge"))
		default:
			h.logger.Error("finish passkey registration failed", "error", err, "user_id", userID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to complete registration"))
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, passkey.ToResponse())
}

func (h *PasskeyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	passkeys, err := h.service.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list passkeys failed", "error", err, "user_id", userID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to list passkeys"))
		return
	}

	responses := make([]*models.PasskeyResponse, len(passkeys))
	for i, pk := range passkeys {
		responses[i] = pk.ToResponse()
	}
	httputil.JSON(w, http.StatusOK, responses)
}

func (h *PasskeyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	passkeyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid passkey id"))
		return
	}

	var req models.RenamePasskeyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid request body"))
		return
	}
	if err := validator.Validate(&req); err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, err.Error()))
		return
	}

	if err := h.service.Rename(r.Context(), passkeyID, userID, req.Name); err != nil {
		switch {
		case errors.Is(err, service.ErrPasskeyNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "passkey not found"))
		case errors.Is(err, service.ErrUnauthorized):
			apierror.Write(w, apierror.New(apierror.Forbidden, "passkey belongs to another user"))
		default:
			h.logger.Error("rename passkey failed", "error", err, "passkey_id", passkeyID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to rename passkey"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "passkey renamed"})
}

func (h *PasskeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Unauthenticated, "unauthenticated"))
		return
	}

	passkeyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.Write(w, apierror.New(apierror.Validation, "invalid passkey id"))
		return
	}

	if err := h.service.Delete(r.Context(), passkeyID, userID); err != nil {
		switch {
		case errors.Is(err, service.ErrPasskeyNotFound):
			apierror.Write(w, apierror.New(apierror.NotFound, "passkey not found"))
		case errors.Is(err, service.ErrUnauthorized):
			apierror.Write(w, apierror.New(apierror.Forbidden, "passkey belongs to another user"))
		default:
			h.logger.Error("delete passkey failed", "error", err, "passkey_id", passkeyID)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to delete passkey"))
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "passkey deleted"})
}

func (h *PasskeyHandler) BeginDiscoverableAuthentication(w http.ResponseWriter, r *http.Request) {
	options, challengeID, err := h.service.BeginDiscoverableAuthentication(r.Context())
	if err != nil {
		h.logger.Error("begin passkey authentication failed", "error", err)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to begin authentication"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"publicKey":   options.Response,
		"challengeId": challengeID,
	})
}

func (h *PasskeyHandler) FinishAuthentication(w http.ResponseWriter, r *http.Request) {
	challengeID := r.Header.Get("X-Challenge-ID")
	if challengeID == "" {
		apierror.Write(w, apierror.New(apierror.Validation, "X-Challenge-ID header is required"))
		return
	}

	user, err := h.service.FinishAuthentication(r.Context(), challengeID, r)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasskeyNotFound), errors.Is(err, service.ErrInvalidCredential):
			apierror.Write(w, apierror.New(apierror.Unauthenticated, "invalid credentials"))
		case errors.Is(err, service.ErrInvalidChallenge):
			apierror.Write(w, apierror.New(apierror.Validation, "invalid or expired challenge"))
		default:
			h.logger.Error("finish passkey authentication failed", "error", err)
			apierror.Write(w, apierror.New(apierror.Internal, "failed to complete authentication"))
		}
		return
	}

	tokens, err := h.issuer.IssueTokenPair(r.Context(), user)
	if err != nil {
		h.logger.Error("passkey login token issuance failed", "error", err, "user_id", user.ID)
		apierror.Write(w, apierror.New(apierror.Internal, "failed to complete login"))
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}
