// SPDX-License-Identifier: BSL-1.1

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/slotforge/pkg/models"
)

const (
	RoleAdmin = string(models.RoleAdmin)
	RoleUser  = string(models.RoleUser)
	RoleGuest = string(models.RoleGuest)
)

// User is an authenticatable identity, keyed on a unique username rather
// than an email address — this domain has no notion of email delivery.
type User struct {
	models.TimestampedEntity
	Username        string `json:"username"`
	PasswordHash    string `json:"-"`
	PasswordVersion int    `json:"-"`
	Role            string `json:"role"`
	MFAEnabled      bool   `json:"mfa_enabled"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RefreshToken is an opaque, high-entropy credential; only its hash is
// ever persisted. Rotated on every successful refresh.
type RefreshToken struct {
	models.Entity
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SetupState is the singleton first-admin bootstrap gate described by
// spec §4.1. There is exactly one row of this shape in storage.
type SetupState struct {
	SetupComplete  bool    `json:"setup_complete"`
	SetupReopened  bool    `json:"setup_reopened"`
	UnlockTokenHash *string `json:"-"`
}
