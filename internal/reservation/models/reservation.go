// SPDX-License-Identifier: BSL-1.1

// Package models holds the reservation scheduler's entities (§4.2,
// §4.8): Reservation, RecurrenceRule and the immutable audit trail.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/slotforge/pkg/models"
)

// Reservation is a booked half-open interval [StartTime, EndTime) on
// a resource. The set of active reservations on a resource has
// pairwise-disjoint intervals.
type Reservation struct {
	models.TimestampedEntity
	UserID              uuid.UUID  `json:"user_id"`
	ResourceID          uuid.UUID  `json:"resource_id"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             time.Time  `json:"end_time"`
	Status              string     `json:"status"`
	RecurrenceRuleID    *uuid.UUID `json:"recurrence_rule_id,omitempty"`
	ParentReservationID *uuid.UUID `json:"parent_reservation_id,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason  string     `json:"cancellation_reason,omitempty"`
}

// Overlaps reports whether the reservation's interval intersects
// [start, end) under the strict-inequality predicate (§4.2): touching
// endpoints do not conflict.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// RecurrenceRule describes how a recurring reservation request expands
// into concrete instances.
type RecurrenceRule struct {
	models.TimestampedEntity
	Frequency       string     `json:"frequency"`
	Interval        int        `json:"interval"`
	DaysOfWeek      *int       `json:"days_of_week,omitempty"` // bitmap, bit 0 = Sunday
	EndPolicy       string     `json:"end_policy"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	OccurrenceCount *int       `json:"occurrence_count,omitempty"`
}

// HistoryEntry is one immutable, append-only audit record for a
// reservation's lifecycle transitions.
type HistoryEntry struct {
	ID            uuid.UUID       `json:"id"`
	ReservationID uuid.UUID       `json:"reservation_id"`
	Action        string          `json:"action"`
	Actor         uuid.UUID       `json:"actor"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Actions recorded in reservation history.
const (
	ActionCreated   = "created"
	ActionCancelled = "cancelled"
	ActionExpired   = "expired"
)
