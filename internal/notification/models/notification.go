// SPDX-License-Identifier: BSL-1.1

// Package models holds the per-user notification entity (§3): typed,
// read-tracked, with an optional deep link into the resource it concerns.
package models

import (
	"github.com/google/uuid"

	"github.com/slotforge/pkg/models"
)

// Notification is a single per-user, typed notification.
type Notification struct {
	models.TimestampedEntity
	UserID  uuid.UUID `json:"user_id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Link    *string   `json:"link,omitempty"`
	Read    bool      `json:"read"`
}

// Notification kinds produced by the reservation/waitlist engines.
const (
	KindReservationCancelled = "reservation_cancelled"
	KindWaitlistPromoted     = "waitlist_promoted"
	KindWaitlistExpired      = "waitlist_expired"
)
