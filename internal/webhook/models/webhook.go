// SPDX-License-Identifier: BSL-1.1

// Package models holds the outbound webhook subscription and delivery
// history entities of §3 and §4.6.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotforge/pkg/models"
)

// Webhook is a subscriber-registered HTTP endpoint notified for a set
// of event types.
type Webhook struct {
	models.TimestampedEntity
	URL                 string   `json:"url"`
	EventTypes          []string `json:"event_types"`
	Secret              string   `json:"-"`
	Active              bool     `json:"active"`
	ConsecutiveFailures int      `json:"-"`
}

// Matches reports whether this webhook subscribes to the given event
// type. An empty EventTypes set subscribes to everything.
func (w *Webhook) Matches(eventType string) bool {
	if len(w.EventTypes) == 0 {
		return true
	}
	for _, t := range w.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Delivery attempt outcomes persisted as WebhookDelivery rows.
const (
	DeliveryPending = "pending"
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
	DeliveryGivenUp = "given_up"
)

// Delivery is one attempted (or pending) delivery of an event to a
// webhook.
type Delivery struct {
	models.Entity
	WebhookID    uuid.UUID  `json:"webhook_id"`
	EventType    string     `json:"event_type"`
	Payload      []byte     `json:"-"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	StatusCode   *int       `json:"status_code,omitempty"`
	ResponseBody string     `json:"response_snippet,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RegisterWebhookRequest is the body of POST /webhooks.
type RegisterWebhookRequest struct {
	URL        string   `json:"url" validate:"required,url"`
	EventTypes []string `json:"event_types,omitempty"`
}

// UpdateWebhookRequest is the body of PATCH /webhooks/{id}.
type UpdateWebhookRequest struct {
	URL        *string  `json:"url,omitempty" validate:"omitempty,url"`
	EventTypes []string `json:"event_types,omitempty"`
	Active     *bool    `json:"active,omitempty"`
}
