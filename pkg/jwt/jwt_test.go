// SPDX-License-Identifier: BSL-1.1

package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privBytes := x509.MarshalPKCS1PrivateKey(key)
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes}), 0o600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0o600))

	mgr, err := NewManager(&Config{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		AccessExpiry:   30 * time.Minute,
		RefreshExpiry:  7 * 24 * time.Hour,
		Issuer:         "slotforge-test",
	})
	require.NoError(t, err)
	return mgr
}

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := testManager(t)

	token, err := mgr.GenerateAccessToken("user-1", "alice", "user", 3)
	require.NoError(t, err)

	claims, err := mgr.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "user", claims.Role)
	require.Equal(t, 3, claims.PasswordVersion)
}

func TestCheckPasswordVersion(t *testing.T) {
	mgr := testManager(t)
	token, err := mgr.GenerateAccessToken("user-1", "alice", "user", 1)
	require.NoError(t, err)

	claims, err := mgr.ValidateAccessToken(token)
	require.NoError(t, err)

	require.NoError(t, CheckPasswordVersion(claims, 1))
	require.ErrorIs(t, CheckPasswordVersion(claims, 2), ErrStaleToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	mgr := testManager(t)

	token, expiresAt, err := mgr.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	userID, err := mgr.ValidateRefreshToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
}

func TestValidateAccessTokenRejectsBadSignature(t *testing.T) {
	mgr := testManager(t)
	other := testManager(t)

	token, err := mgr.GenerateAccessToken("user-1", "alice", "user", 1)
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestCustomTokenRoundTrip(t *testing.T) {
	mgr := testManager(t)

	token, err := mgr.GenerateCustomToken(map[string]interface{}{
		"sub":         "user-1",
		"mfa_pending": true,
	})
	require.NoError(t, err)

	claims, err := mgr.ValidateCustomToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, true, claims["mfa_pending"])
}
