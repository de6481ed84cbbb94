// SPDX-License-Identifier: BSL-1.1

// Package service implements spec §4.1: credentials, token issuance and
// rotation, and the one-shot first-admin setup gate.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/slotforge/pkg/jwt"
	"github.com/slotforge/pkg/models"
	"github.com/slotforge/pkg/validator"
	"github.com/slotforge/slotforge/internal/config"
	identitymodels "github.com/slotforge/slotforge/internal/identity/models"
	"github.com/slotforge/slotforge/internal/identity/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrMFARequired        = errors.New("mfa required")
	ErrMFAInvalid         = errors.New("invalid mfa code")
	ErrTokenInvalid       = errors.New("invalid or expired refresh token")
	ErrSetupLocked        = errors.New("setup is locked")
	ErrSetupBadToken      = errors.New("invalid setup reopen token")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUserNotFound       = repository.ErrUserNotFound
)

// MFAChecker is satisfied by internal/mfa's service. Kept as a narrow
// interface so identity never imports the mfa package directly.
type MFAChecker interface {
	IsMFAEnabled(ctx context.Context, userID uuid.UUID) (bool, error)
	VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

// EventPublisher is satisfied by the event bus; identity publishes
// nothing from spec's taxonomy directly today but the hook is kept
// symmetric with every other service for future auth-audit events.
type EventPublisher interface {
	Publish(topic string, payload interface{})
}

// AuthService implements registration, login, refresh rotation, logout
// and the setup gate.
type AuthService struct {
	users      *repository.UserRepository
	tokens     *repository.TokenRepository
	setup      *repository.SetupRepository
	jwtManager *jwt.Manager
	mfa        MFAChecker
	events     EventPublisher
	cfg        *config.Config
	logger     *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users *repository.UserRepository,
	tokens *repository.TokenRepository,
	setup *repository.SetupRepository,
	jwtManager *jwt.Manager,
	mfa MFAChecker,
	events EventPublisher,
	cfg *config.Config,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users: users, tokens: tokens, setup: setup,
		jwtManager: jwtManager, mfa: mfa, events: events,
		cfg: cfg, logger: logger,
	}
}

// Register creates a new user with the default "user" role. Password
// policy (§4.1): >=8 chars, upper, lower, digit, special, and must not
// contain the username (case-insensitive) once the username is at
// least 3 characters.
func (s *AuthService) Register(ctx context.Context, username, password string) (*identitymodels.User, error) {
	if err := validator.ValidateVar(password, "strongpassword"); err != nil {
		return nil, ErrWeakPassword
	}
	if validator.UsernameInPassword(username, password) {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &identitymodels.User{
		TimestampedEntity: models.TimestampedEntity{Entity: models.Entity{ID: uuid.New()}},
		Username:          username,
		PasswordHash:      string(hash),
		PasswordVersion:   1,
		Role:              identitymodels.RoleUser,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and, when MFA is enabled, an inline code
// (spec §6: POST /token's optional mfa_code). On success it issues a
// fresh access/refresh pair.
func (s *AuthService) Login(ctx context.Context, username, password, mfaCode string) (*identitymodels.TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if s.mfa != nil {
		enabled, err := s.mfa.IsMFAEnabled(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check mfa status: %w", err)
		}
		if enabled {
			if mfaCode == "" {
				return nil, ErrMFARequired
			}
			valid, err := s.mfa.VerifyCode(ctx, user.ID, mfaCode)
			if err != nil || !valid {
				return nil, ErrMFAInvalid
			}
		}
	}

	return s.IssueTokenPair(ctx, user)
}

// IssueTokenPair mints a fresh access/refresh pair for an already
// authenticated user. Shared by password login and any other factor
// that proves identity out-of-band (passkey possession, for instance).
func (s *AuthService) IssueTokenPair(ctx context.Context, user *identitymodels.User) (*identitymodels.TokenResponse, error) {
	access, err := s.jwtManager.GenerateAccessToken(user.ID.String(), user.Username, user.Role, user.PasswordVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, expiresAt, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Create(ctx, &identitymodels.RefreshToken{
		Entity:    models.Entity{ID: uuid.New()},
		UserID:    user.ID,
		TokenHash: repository.HashToken(refresh),
		ExpiresAt: time.Now().Add(s.cfg.JWT.RefreshExpiry),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	_ = expiresAt

	return &identitymodels.TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// Refresh rotates a refresh token atomically: the old token is revoked
// in the same transaction the new pair is issued (§4.8,
// rotate_refresh_token). A concurrent second use of the old token
// always fails — the §8 refresh-rotation property.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*identitymodels.TokenResponse, error) {
	oldHash := repository.HashToken(refreshToken)

	old, err := s.tokens.GetByHash(ctx, oldHash)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, old.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	access, err := s.jwtManager.GenerateAccessToken(user.ID.String(), user.Username, user.Role, user.PasswordVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefresh, _, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	newRow := &identitymodels.RefreshToken{
		Entity:    models.Entity{ID: uuid.New()},
		UserID:    user.ID,
		TokenHash: repository.HashToken(newRefresh),
		ExpiresAt: time.Now().Add(s.cfg.JWT.RefreshExpiry),
	}

	if err := s.tokens.Rotate(ctx, oldHash, newRow); err != nil {
		return nil, ErrTokenInvalid
	}

	return &identitymodels.TokenResponse{AccessToken: access, RefreshToken: newRefresh, TokenType: "bearer"}, nil
}

// Logout revokes every refresh token owned by the caller.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// ChangePassword re-verifies the current password, stores a new hash,
// bumps the password-version counter (invalidating every access token
// issued before this point), and revokes all refresh tokens.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}
	if err := validator.ValidateVar(newPassword, "strongpassword"); err != nil {
		return ErrWeakPassword
	}
	if validator.UsernameInPassword(user.Username, newPassword) {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// CurrentUser fetches the caller's own profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*identitymodels.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ListUsers returns every user. Intended for admin-only routes.
func (s *AuthService) ListUsers(ctx context.Context) ([]*identitymodels.User, error) {
	return s.users.List(ctx)
}

// UpdateRole changes a target user's role. Intended for admin-only
// routes; the caller is responsible for authorization.
func (s *AuthService) UpdateRole(ctx context.Context, userID uuid.UUID, role string) error {
	if !models.Role(role).IsValid() {
		return ErrInvalidRole
	}
	return s.users.UpdateRole(ctx, userID, role)
}

// CurrentPasswordVersion satisfies pkg/middleware's PasswordVersionLookup.
func (s *AuthService) CurrentPasswordVersion(ctx context.Context, userID string) (int, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return user.PasswordVersion, nil
}

// --- Setup gate (§4.1) ---

// SetupStatus reports the current gate state and user count.
func (s *AuthService) SetupStatus(ctx context.Context) (*identitymodels.SetupState, int, error) {
	state, err := s.setup.Get(ctx)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return state, count, nil
}

// Initialize creates the first admin, or promotes an existing user to
// admin, while the gate is open (user_count==0 or setup_reopened).
// reopenToken, when the gate is closed-but-reopened, must match the
// stored unlock token hash.
func (s *AuthService) Initialize(ctx context.Context, req identitymodels.InitializeRequest, reopenToken string) (*identitymodels.User, error) {
	state, err := s.setup.Get(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	open := count == 0 || state.SetupReopened
	if !open {
		return nil, ErrSetupLocked
	}

	if state.SetupReopened && count > 0 {
		if state.UnlockTokenHash == nil || !constantTimeEqual(hashReopenToken(reopenToken), *state.UnlockTokenHash) {
			return nil, ErrSetupBadToken
		}
	}

	var admin *identitymodels.User
	if req.Promote {
		admin, err = s.users.GetByUsername(ctx, req.Username)
		if err != nil {
			return nil, ErrUserNotFound
		}
		if err := s.users.UpdateRole(ctx, admin.ID, identitymodels.RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to promote user: %w", err)
		}
		admin.Role = identitymodels.RoleAdmin
	} else {
		admin, err = s.Register(ctx, req.Username, req.Password)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpdateRole(ctx, admin.ID, identitymodels.RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to grant admin role: %w", err)
		}
		admin.Role = identitymodels.RoleAdmin
	}

	state.SetupComplete = true
	wasReopened := state.SetupReopened
	state.SetupReopened = false
	if wasReopened && s.cfg.Setup.ReopenTokenSingleUse {
		state.UnlockTokenHash = nil
	}
	if err := s.setup.Update(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to close setup gate: %w", err)
	}

	return admin, nil
}

// Reopen generates a fresh unlock token, returning its plaintext once
// (only the hash is persisted). Intended for an operator-only path, not
// exposed over the public API surface described in spec §6.
func (s *AuthService) Reopen(ctx context.Context) (string, error) {
	token, _, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	hash := hashReopenToken(token)
	state, err := s.setup.Get(ctx)
	if err != nil {
		return "", err
	}
	state.SetupReopened = true
	state.UnlockTokenHash = &hash
	if err := s.setup.Update(ctx, state); err != nil {
		return "", err
	}
	return token, nil
}

func hashReopenToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func newOpaqueToken() (string, time.Time, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	token := strings.TrimRight(base64.URLEncoding.EncodeToString(buf), "=")
	return token, time.Now(), nil
}
