// SPDX-License-Identifier: BSL-1.1

// Package models holds the waitlist engine's entities (§4.4): a FIFO
// queue per resource that watches for freed windows and issues
// time-bound offers.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotforge/pkg/models"
)

// Entry is one subscriber's position in a resource's waitlist.
type Entry struct {
	models.TimestampedEntity
	UserID         uuid.UUID  `json:"user_id"`
	ResourceID     uuid.UUID  `json:"resource_id"`
	DesiredStart   time.Time  `json:"desired_start"`
	DesiredEnd     time.Time  `json:"desired_end"`
	FlexibleTime   bool       `json:"flexible_time"`
	Position       int        `json:"position"`
	State          string     `json:"state"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
}

// Intersects reports whether the entry's desired window intersects
// [start, end), used for non-flexible matching during promotion.
func (e *Entry) Intersects(start, end time.Time) bool {
	return e.DesiredStart.Before(end) && start.Before(e.DesiredEnd)
}

// RequestedDuration is the length of the entry's desired window, used
// to check a flexible entry against a freed interval of any shape.
func (e *Entry) RequestedDuration() time.Duration {
	return e.DesiredEnd.Sub(e.DesiredStart)
}

// JoinRequest is the body of POST /waitlist.
type JoinRequest struct {
	ResourceID   string    `json:"resource_id" validate:"required,uuid"`
	DesiredStart time.Time `json:"desired_start" validate:"required"`
	DesiredEnd   time.Time `json:"desired_end" validate:"required"`
	FlexibleTime bool      `json:"flexible_time"`
}
