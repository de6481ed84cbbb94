// SPDX-License-Identifier: BSL-1.1

// Package service implements per-user notification delivery: creation
// from domain events, listing, and read-state tracking (§3, §6).
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	modelspkg "github.com/slotforge/pkg/models"
	"github.com/slotforge/slotforge/internal/notification/models"
	"github.com/slotforge/slotforge/internal/notification/repository"
)

// EventPublisher is satisfied by the event bus.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

// NotificationService creates and manages per-user notifications.
type NotificationService struct {
	notifications *repository.NotificationRepository
	events        EventPublisher
	logger        *slog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(notifications *repository.NotificationRepository, events EventPublisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, events: events, logger: logger}
}

// Notify records a notification for a user and pushes it over the
// event bus. Failures are logged, not returned: notification delivery
// never blocks the domain operation that triggered it.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind, message string, link *string) {
	n := &models.Notification{
		TimestampedEntity: modelspkg.TimestampedEntity{Entity: modelspkg.Entity{ID: uuid.New()}},
		UserID:            userID,
		Kind:              kind,
		Message:           message,
		Link:              link,
		Read:              false,
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Error("failed to create notification", "user_id", userID, "kind", kind, "error", err)
		return
	}

	s.events.Publish("notification.created", map[string]interface{}{
		"id":      n.ID.String(),
		"user_id": n.UserID.String(),
		"kind":    n.Kind,
		"message": n.Message,
	})
}

// ListMine returns a user's notifications, newest first.
func (s *NotificationService) ListMine(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	return s.notifications.ListByUser(ctx, userID)
}

// MarkRead flags a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

// MarkAllRead flags every unread notification for a user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.notifications.MarkAllRead(ctx, userID)
}
