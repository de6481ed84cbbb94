// SPDX-License-Identifier: BSL-1.1

package models

import "time"

// CreateReservationRequest is the body of POST /reservations.
type CreateReservationRequest struct {
	ResourceID string    `json:"resource_id" validate:"required,uuid"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required"`
}

// CreateRecurringReservationRequest is the body of POST /reservations/recurring.
type CreateRecurringReservationRequest struct {
	ResourceID      string     `json:"resource_id" validate:"required,uuid"`
	StartTime       time.Time  `json:"start_time" validate:"required"`
	EndTime         time.Time  `json:"end_time" validate:"required"`
	Frequency       string     `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Interval        int        `json:"interval" validate:"required,gte=1"`
	DaysOfWeek      []int      `json:"days_of_week,omitempty" validate:"dive,gte=0,lte=6"`
	EndPolicy       string     `json:"end_policy" validate:"required,oneof=never on_date after_count"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	OccurrenceCount *int       `json:"occurrence_count,omitempty" validate:"omitempty,gte=1"`
}

// CancelReservationRequest is the optional body of POST /reservations/{id}/cancel.
type CancelReservationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
