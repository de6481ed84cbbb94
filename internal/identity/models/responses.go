// SPDX-License-Identifier: BSL-1.1

package models

// TokenResponse is the body of a successful POST /token or
// POST /token/refresh, matching spec's external-interface wire shape.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserResponse is the public projection of a User.
type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	MFAEnabled bool   `json:"mfa_enabled"`
	CreatedAt  string `json:"created_at"`
}

// ToResponse converts a User to its public projection.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Role:       u.Role,
		MFAEnabled: u.MFAEnabled,
		CreatedAt:  u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// SetupStatusResponse is the body of GET /setup/status.
type SetupStatusResponse struct {
	SetupComplete bool `json:"setup_complete"`
	SetupReopened bool `json:"setup_reopened"`
	UserCount     int  `json:"user_count"`
}
