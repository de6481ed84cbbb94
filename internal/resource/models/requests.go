// SPDX-License-Identifier: BSL-1.1

package models

// CreateResourceRequest is the body of POST /resources.
type CreateResourceRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=200"`
	Description    string   `json:"description" validate:"max=2000"`
	Tags           []string `json:"tags"`
	BaseAvailable  bool     `json:"base_available"`
	AutoResetHours *int     `json:"auto_reset_hours,omitempty" validate:"omitempty,gt=0"`
}

// UpdateResourceRequest is the body of PUT /resources/{id}.
type UpdateResourceRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=200"`
	Description    string   `json:"description" validate:"max=2000"`
	Tags           []string `json:"tags"`
	BaseAvailable  bool     `json:"base_available"`
	Status         string   `json:"status" validate:"required,oneof=available in_use unavailable"`
	AutoResetHours *int     `json:"auto_reset_hours,omitempty" validate:"omitempty,gt=0"`
}

// SetBusinessHoursRequest replaces the full weekly schedule, either
// global (resource_id omitted) or for one resource.
type SetBusinessHoursRequest struct {
	Hours []BusinessHoursRow `json:"hours" validate:"required,dive"`
}

// BusinessHoursRow is one weekday entry of a SetBusinessHoursRequest.
type BusinessHoursRow struct {
	Weekday     int  `json:"weekday" validate:"gte=0,lte=6"`
	OpenMinute  int  `json:"open_minute" validate:"gte=0,lt=1440"`
	CloseMinute int  `json:"close_minute" validate:"gte=0,lte=1440"`
	Closed      bool `json:"closed"`
}

// CreateBlackoutRequest is the body of POST /resources/{id}/blackouts
// (resource-scoped) or POST /blackouts (global, id omitted by caller).
type CreateBlackoutRequest struct {
	Date   string `json:"date" validate:"required"` // YYYY-MM-DD
	Reason string `json:"reason" validate:"max=500"`
}
