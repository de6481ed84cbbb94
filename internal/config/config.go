// WhenTo - Collaborative event calendar for self-hosted environments
// Copyright (C) 2025 WhenTo Contributors
// SPDX-License-Identifier: BSL-1.1

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the unified application configuration for every service.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	AppURL   string `envconfig:"APP_URL" default:"http://localhost:8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL"`
	NATSURL     string `envconfig:"NATS_URL"`

	MeilisearchURL    string `envconfig:"MEILISEARCH_URL"`
	MeilisearchAPIKey string `envconfig:"MEILISEARCH_API_KEY"`

	JWT JWTConfig

	RateLimitEnabled bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"12"`

	WebAuthn WebAuthnConfig
	TOTP     TOTPConfig

	Setup       SetupConfig
	Reservation ReservationConfig
	Waitlist    WaitlistConfig
	Webhook     WebhookConfig
	Background  BackgroundConfig
	Availability AvailabilityConfig
}

// JWTConfig configures access/refresh token issuance.
type JWTConfig struct {
	PrivateKeyPath string        `envconfig:"JWT_PRIVATE_KEY_PATH" default:"keys/private.pem"`
	PublicKeyPath  string        `envconfig:"JWT_PUBLIC_KEY_PATH" default:"keys/public.pem"`
	AccessExpiry   time.Duration `envconfig:"JWT_ACCESS_EXPIRY" default:"30m"`
	RefreshExpiry  time.Duration `envconfig:"JWT_REFRESH_EXPIRY" default:"168h"`
	Issuer         string        `envconfig:"JWT_ISSUER" default:"slotforge"`
}

// WebAuthnConfig configures the optional passkey MFA factor.
type WebAuthnConfig struct {
	RPName   string        `envconfig:"WEBAUTHN_RP_NAME" default:"SlotForge"`
	RPID     string        `envconfig:"WEBAUTHN_RP_ID" default:"localhost"`
	RPOrigin string        `envconfig:"WEBAUTHN_RP_ORIGIN" default:"http://localhost:8080"`
	Timeout  time.Duration `envconfig:"WEBAUTHN_TIMEOUT" default:"60s"`
}

// TOTPConfig configures the TOTP MFA factor.
type TOTPConfig struct {
	Issuer          string `envconfig:"TOTP_ISSUER" default:"SlotForge"`
	Period          uint   `envconfig:"TOTP_PERIOD" default:"30"`
	Digits          uint   `envconfig:"TOTP_DIGITS" default:"6"`
	BackupCodeCount int    `envconfig:"TOTP_BACKUP_CODE_COUNT" default:"10"`
}

// SetupConfig governs the one-shot admin bootstrap gate.
type SetupConfig struct {
	// ReopenTokenSingleUse decides whether a presented X-Setup-Token is
	// consumed on success (cleared along with setup_reopened) or may be
	// reused until the operator rotates it. Defaults to single-use.
	ReopenTokenSingleUse bool `envconfig:"SETUP_REOPEN_TOKEN_SINGLE_USE" default:"true"`
}

// ReservationConfig bounds what a reservation create request may request.
type ReservationConfig struct {
	GracePeriod time.Duration `envconfig:"RESERVATION_GRACE_PERIOD" default:"0s"`
	MinDuration time.Duration `envconfig:"RESERVATION_MIN_DURATION" default:"15m"`
	MaxDuration time.Duration `envconfig:"RESERVATION_MAX_DURATION" default:"24h"`

	// Per-day active-reservation quota by role, per-user.
	AdminDailyQuota int `envconfig:"RESERVATION_QUOTA_ADMIN" default:"100"`
	UserDailyQuota  int `envconfig:"RESERVATION_QUOTA_USER" default:"10"`
	GuestDailyQuota int `envconfig:"RESERVATION_QUOTA_GUEST" default:"2"`
}

// WaitlistConfig configures the offer/promotion engine.
type WaitlistConfig struct {
	OfferTTL time.Duration `envconfig:"WAITLIST_OFFER_TTL" default:"30m"`
}

// WebhookConfig configures the outbound delivery dispatcher.
type WebhookConfig struct {
	WorkerCount    int           `envconfig:"WEBHOOK_WORKER_COUNT" default:"8"`
	RequestTimeout time.Duration `envconfig:"WEBHOOK_REQUEST_TIMEOUT" default:"10s"`
	MaxAttempts    int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"6"`
	ConsecutiveFailuresToDisable int `envconfig:"WEBHOOK_CONSECUTIVE_FAILURES_TO_DISABLE" default:"3"`
}

// BackgroundConfig sets the cadence of the periodic sweep loops.
type BackgroundConfig struct {
	ReservationExpirySweep  time.Duration `envconfig:"SWEEP_RESERVATION_EXPIRY_INTERVAL" default:"60s"`
	WaitlistOfferExpirySweep time.Duration `envconfig:"SWEEP_WAITLIST_OFFER_EXPIRY_INTERVAL" default:"30s"`
	RevokedTokenSweep       time.Duration `envconfig:"SWEEP_REVOKED_TOKEN_INTERVAL" default:"1h"`
	RevokedTokenRetention   time.Duration `envconfig:"REVOKED_TOKEN_RETENTION" default:"168h"`
	ResourceAutoResetSweep  time.Duration `envconfig:"SWEEP_RESOURCE_AUTO_RESET_INTERVAL" default:"5m"`
}

// AvailabilityConfig tunes the projection engine.
type AvailabilityConfig struct {
	ProjectionHorizon      time.Duration `envconfig:"AVAILABILITY_PROJECTION_HORIZON" default:"720h"`
	BusinessHoursEnforced  bool          `envconfig:"AVAILABILITY_BUSINESS_HOURS_ENFORCED" default:"true"`
}

// Load loads configuration from environment variables, optionally
// preceded by a local .env file (silently ignored when absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.BcryptCost < 10 {
		return nil, fmt.Errorf("BCRYPT_COST must be at least 10, got %d", cfg.BcryptCost)
	}
	if cfg.Reservation.MinDuration <= 0 || cfg.Reservation.MaxDuration < cfg.Reservation.MinDuration {
		return nil, fmt.Errorf("invalid reservation duration bounds: min=%s max=%s",
			cfg.Reservation.MinDuration, cfg.Reservation.MaxDuration)
	}
	return &cfg, nil
}
