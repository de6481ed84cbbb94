// SPDX-License-Identifier: BSL-1.1

package models

// QuotaStatus represents a user's per-day active-reservation quota
// usage against their role's tier limit.
type QuotaStatus struct {
	// Limit is the maximum allowed reservations
	Limit int `json:"limit"`

	// Usage is the current reservation count
	Usage int `json:"usage"`

	// Available is the remaining reservations (Limit - Usage, floored at 0)
	Available int `json:"available"`

	// CanCreate indicates if a new reservation can be created
	CanCreate bool `json:"can_create"`

	// IsOverQuota indicates if current usage exceeds the limit
	IsOverQuota bool `json:"is_over_quota"`
}

// NewQuotaStatus creates a QuotaStatus from limit and usage values.
func NewQuotaStatus(limit, usage int) QuotaStatus {
	available := limit - usage
	if available < 0 {
		available = 0
	}

	return QuotaStatus{
		Limit:       limit,
		Usage:       usage,
		Available:   available,
		CanCreate:   usage < limit,
		IsOverQuota: usage > limit,
	}
}
