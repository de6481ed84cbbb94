// SPDX-License-Identifier: BSL-1.1

// Package models holds the read-only projection types returned by the
// availability engine (§4.3): it has no persisted entities of its own,
// composing resource, schedule and reservation state instead.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Slot is one contiguous segment of a schedule projection.
type Slot struct {
	Start     time.Time `json:"slot_start"`
	End       time.Time `json:"slot_end"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// Unavailable slot reasons.
const (
	ReasonReserved = "reserved"
	ReasonClosed   = "closed"
	ReasonBlackout = "blackout"
	ReasonDisabled = "disabled"
)

// Summary counts resources by their current occupancy state.
type Summary struct {
	AvailableNow   int `json:"available_now"`
	ReservedNow    int `json:"reserved_now"`
	UnavailableNow int `json:"unavailable_now"`
}

// Status is the live occupancy state of a single resource: the
// single-resource counterpart to Summary's fleet-wide buckets.
type Status struct {
	ResourceID  uuid.UUID  `json:"resource_id"`
	Status      string     `json:"status"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
}

// Availability is the default day-scoped composition returned by
// GET /resources/{id}/availability: live status plus the schedule
// for the requested (or default) window, without requiring the
// caller to pick a granularity the way schedule() does.
type Availability struct {
	ResourceID uuid.UUID `json:"resource_id"`
	Status     string    `json:"status"`
	Slots      []Slot    `json:"slots"`
}
