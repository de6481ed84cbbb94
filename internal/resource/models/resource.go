// SPDX-License-Identifier: BSL-1.1

// Package models defines the bookable-resource entities of spec §3:
// Resource, BusinessHours and BlackoutDate.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/slotforge/pkg/models"
)

// Resource is a bookable room, piece of equipment, or vehicle.
type Resource struct {
	models.TimestampedEntity
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Tags             []string   `json:"tags"`
	BaseAvailable    bool       `json:"base_available"`
	Status           string     `json:"status"`
	AutoResetHours   *int       `json:"auto_reset_hours,omitempty"`
	UnavailableSince *time.Time `json:"unavailable_since,omitempty"`
}

// IsUnavailable reports whether the resource is administratively shut
// off, independent of any reservation occupying it right now.
func (r *Resource) IsUnavailable() bool {
	return !r.BaseAvailable || r.Status == models.ResourceUnavailable.String()
}

// BusinessHours is one weekday row, either global (ResourceID nil) or
// a per-resource override.
type BusinessHours struct {
	models.Entity
	ResourceID *uuid.UUID `json:"resource_id,omitempty"`
	Weekday    int        `json:"weekday"` // 0=Sunday .. 6=Saturday
	OpenMinute int        `json:"open_minute"`
	CloseMinute int       `json:"close_minute"`
	Closed     bool       `json:"closed"`
}

// BlackoutDate excludes a whole calendar date, either globally or for
// one resource.
type BlackoutDate struct {
	models.Entity
	ResourceID *uuid.UUID `json:"resource_id,omitempty"`
	Date       time.Time  `json:"date"`
	Reason     string     `json:"reason"`
}
