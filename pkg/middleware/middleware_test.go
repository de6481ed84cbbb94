// SPDX-License-Identifier: BSL-1.1

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		role       string
		allowed    []string
		noRole     bool
		wantStatus int
	}{
		{name: "role granted", role: "admin", allowed: []string{"admin"}, wantStatus: http.StatusOK},
		{name: "role denied", role: "user", allowed: []string{"admin"}, wantStatus: http.StatusForbidden},
		{name: "missing role context", noRole: true, allowed: []string{"admin"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(tt.allowed...)(ok)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if !tt.noRole {
				r = r.WithContext(context.WithValue(r.Context(), UserRoleKey, tt.role))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGetUserIDAndUsername(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDKey, "u1")
	ctx = context.WithValue(ctx, UsernameKey, "alice")
	ctx = context.WithValue(ctx, UserRoleKey, "admin")

	assert.Equal(t, "u1", GetUserID(ctx))
	assert.Equal(t, "alice", GetUsername(ctx))
	assert.Equal(t, "admin", GetUserRole(ctx))
}
