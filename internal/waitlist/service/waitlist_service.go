// SPDX-License-Identifier: BSL-1.1

// Package service implements the waitlist engine: FIFO join, the
// freed-interval promotion algorithm, accept/leave, and the offer
// expiry sweep (§4.4).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	modelspkg "github.com/slotforge/pkg/models"
	"github.com/slotforge/slotforge/internal/config"
	"github.com/slotforge/slotforge/internal/waitlist/repository"

	waitlistmodels "github.com/slotforge/slotforge/internal/waitlist/models"
)

var (
	ErrEntryNotFound = repository.ErrEntryNotFound
	ErrNotOwner      = errors.New("only the subscriber may modify this waitlist entry")
	ErrNotOffered    = errors.New("waitlist entry does not have an active offer")
)

// EventPublisher is satisfied by the event bus.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

// ReservationCreator is satisfied by the reservation service; used to
// atomically book the offered interval on accept (§4.4 Accept).
type ReservationCreator interface {
	CreateForOffer(ctx context.Context, userID, resourceID uuid.UUID, start, end time.Time) (uuid.UUID, error)
}

// NotificationCreator is satisfied by the notification service; notified
// on promotion. Optional: a nil value is treated as a no-op.
type NotificationCreator interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, message string, link *string)
}

// WaitlistService implements the waitlist engine.
type WaitlistService struct {
	entries      *repository.WaitlistRepository
	reservations ReservationCreator
	notifier     NotificationCreator
	events       EventPublisher
	offerTTL     time.Duration
	logger       *slog.Logger
}

// NewWaitlistService creates a new waitlist service.
func NewWaitlistService(
	entries *repository.WaitlistRepository,
	reservations ReservationCreator,
	notifier NotificationCreator,
	events EventPublisher,
	cfg *config.WaitlistConfig,
	logger *slog.Logger,
) *WaitlistService {
	return &WaitlistService{entries: entries, reservations: reservations, notifier: notifier, events: events, offerTTL: cfg.OfferTTL, logger: logger}
}

// SetReservationCreator wires the reservation service in after
// construction, breaking the constructor cycle between the two
// services (the reservation service in turn depends on this one as its
// WaitlistPromoter).
func (s *WaitlistService) SetReservationCreator(reservations ReservationCreator) {
	s.reservations = reservations
}

// Join enqueues a waiting entry for a resource (§4.4 Join).
func (s *WaitlistService) Join(ctx context.Context, userID uuid.UUID, req waitlistmodels.JoinRequest) (*waitlistmodels.Entry, error) {
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("invalid resource id: %w", err)
	}

	e := &waitlistmodels.Entry{
		TimestampedEntity: modelspkg.TimestampedEntity{Entity: modelspkg.Entity{ID: uuid.New()}},
		UserID:            userID,
		ResourceID:        resourceID,
		DesiredStart:      req.DesiredStart,
		DesiredEnd:        req.DesiredEnd,
		FlexibleTime:      req.FlexibleTime,
		State:             modelspkg.WaitlistWaiting.String(),
	}

	if err := s.entries.Join(ctx, e); err != nil {
		return nil, err
	}

	s.events.Publish("waitlist.joined", entryEventPayload(e))
	return e, nil
}

// ListMine returns the caller's waitlist entries.
func (s *WaitlistService) ListMine(ctx context.Context, userID uuid.UUID) ([]*waitlistmodels.Entry, error) {
	return s.entries.ListByUser(ctx, userID)
}

// Promote implements the §4.4 promotion algorithm against a freed
// interval on resourceID: the first FIFO waiting entry whose window
// matches is offered. Called from reservation cancel/expire.
func (s *WaitlistService) Promote(ctx context.Context, resourceID uuid.UUID, freedStart, freedEnd time.Time) {
	waiting, err := s.entries.WaitingFIFO(ctx, resourceID)
	if err != nil {
		s.logger.Error("failed to list waiting entries for promotion", "resource_id", resourceID, "error", err)
		return
	}

	for _, e := range waiting {
		if !entryMatchesFreedInterval(e, freedStart, freedEnd) {
			continue
		}

		expiresAt := time.Now().Add(s.offerTTL)
		if err := s.entries.Offer(ctx, e.ID, expiresAt); err != nil {
			s.logger.Error("failed to offer waitlist entry", "entry_id", e.ID, "error", err)
			return
		}
		e.State = modelspkg.WaitlistOffered.String()
		e.OfferExpiresAt = &expiresAt

		if s.notifier != nil {
			s.notifier.Notify(ctx, e.UserID, "waitlist_promoted", "A spot you're waiting for has opened up", nil)
		}
		s.events.Publish("waitlist.promoted", entryEventPayload(e))
		return
	}
}

// Accept atomically books the offered interval and marks the entry
// accepted (§4.4 Accept). On conflict the offer is expired and the
// next waiter is considered.
func (s *WaitlistService) Accept(ctx context.Context, userID uuid.UUID, id uuid.UUID) (uuid.UUID, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if e.UserID != userID {
		return uuid.Nil, ErrNotOwner
	}
	if e.State != modelspkg.WaitlistOffered.String() {
		return uuid.Nil, ErrNotOffered
	}

	reservationID, err := s.reservations.CreateForOffer(ctx, userID, e.ResourceID, e.DesiredStart, e.DesiredEnd)
	if err != nil {
		_ = s.entries.ExpireOffer(ctx, id)
		s.Promote(ctx, e.ResourceID, e.DesiredStart, e.DesiredEnd)
		return uuid.Nil, err
	}

	if err := s.entries.Accept(ctx, id); err != nil {
		return uuid.Nil, err
	}

	return reservationID, nil
}

// Leave is an owner-initiated withdrawal (§4.4 Leave).
func (s *WaitlistService) Leave(ctx context.Context, userID uuid.UUID, id uuid.UUID) error {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e.UserID != userID {
		return ErrNotOwner
	}
	if err := s.entries.Leave(ctx, id); err != nil {
		return err
	}
	s.events.Publish("waitlist.left", entryEventPayload(e))
	return nil
}

// ExpireOffers runs the §4.7 waitlist-offer-expire sweep: every
// offered entry past its expiry transitions to expired, then
// re-promotion is triggered for its interval.
func (s *WaitlistService) ExpireOffers(ctx context.Context, now time.Time) (int, error) {
	due, err := s.entries.ListExpiredOffers(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, e := range due {
		if err := s.entries.ExpireOffer(ctx, e.ID); err != nil {
			s.logger.Error("failed to expire waitlist offer", "entry_id", e.ID, "error", err)
			continue
		}
		e.State = modelspkg.WaitlistExpired.String()
		s.events.Publish("waitlist.expired", entryEventPayload(e))
		s.Promote(ctx, e.ResourceID, e.DesiredStart, e.DesiredEnd)
	}

	return len(due), nil
}

// entryMatchesFreedInterval decides whether a waiting entry qualifies
// for an offer on a freed interval (§4.4 Promotion step 2): either its
// desired window intersects the freed interval, or it is flexible and
// the freed interval is at least as long as its requested duration.
func entryMatchesFreedInterval(e *waitlistmodels.Entry, freedStart, freedEnd time.Time) bool {
	if e.Intersects(freedStart, freedEnd) {
		return true
	}
	return e.FlexibleTime && e.RequestedDuration() <= freedEnd.Sub(freedStart)
}

func entryEventPayload(e *waitlistmodels.Entry) map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID.String(),
		"user_id":     e.UserID.String(),
		"resource_id": e.ResourceID.String(),
		"state":       e.State,
		"position":    e.Position,
	}
}
