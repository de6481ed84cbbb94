// SPDX-License-Identifier: BSL-1.1

// Package service implements the reservation scheduler: admission
// checks, conflict-free create (single and recurring), cancellation
// and the expire sweep (§4.2).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slotforge/pkg/models"
	"github.com/slotforge/slotforge/internal/config"
	"github.com/slotforge/slotforge/internal/reservation/repository"
	resourcemodels "github.com/slotforge/slotforge/internal/resource/models"
	resourcerepo "github.com/slotforge/slotforge/internal/resource/repository"

	reservationmodels "github.com/slotforge/slotforge/internal/reservation/models"
)

var (
	ErrInvalidWindow    = errors.New("start_time must be before end_time and minute-aligned")
	ErrWindowTooShort   = errors.New("reservation duration is below the configured minimum")
	ErrWindowTooLong    = errors.New("reservation duration exceeds the configured maximum")
	ErrInThePast        = errors.New("reservation window starts in the past")
	ErrResourceInactive = errors.New("resource is not available for booking")
	ErrBlackout         = errors.New("requested window intersects a blackout date")
	ErrOutsideHours     = errors.New("requested window falls outside business hours")
	ErrQuotaExceeded    = errors.New("daily reservation quota exceeded")
	ErrNotOwner         = errors.New("only the owner or an admin may cancel this reservation")
	ErrAlreadyStarted   = errors.New("reservation has already started; only an admin may cancel it now")
	ErrRecurrenceBounds = errors.New("recurrence expansion exceeds the configured horizon or occurrence cap")

	ErrReservationNotFound = repository.ErrReservationNotFound
)

const maxRecurringOccurrences = 500

// EventPublisher is satisfied by the event bus.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

// WaitlistPromoter is satisfied by the waitlist service; invoked
// whenever a reservation frees an interval (§4.4).
type WaitlistPromoter interface {
	Promote(ctx context.Context, resourceID uuid.UUID, freedStart, freedEnd time.Time)
}

// ReservationService implements the reservation scheduler.
type ReservationService struct {
	reservations *repository.ReservationRepository
	recurrences  *repository.RecurrenceRepository
	resources    *resourcerepo.ResourceRepository
	schedule     *resourcerepo.ScheduleRepository
	waitlist     WaitlistPromoter
	events       EventPublisher
	cfg          *config.ReservationConfig
	logger       *slog.Logger
}

// NewReservationService creates a new reservation service.
func NewReservationService(
	reservations *repository.ReservationRepository,
	recurrences *repository.RecurrenceRepository,
	resources *resourcerepo.ResourceRepository,
	schedule *resourcerepo.ScheduleRepository,
	waitlist WaitlistPromoter,
	events EventPublisher,
	cfg *config.ReservationConfig,
	logger *slog.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		recurrences:  recurrences,
		resources:    resources,
		schedule:     schedule,
		waitlist:     waitlist,
		events:       events,
		cfg:          cfg,
		logger:       logger,
	}
}

func dailyQuotaFor(role string) func(*config.ReservationConfig) int {
	switch role {
	case models.RoleAdmin.String():
		return func(c *config.ReservationConfig) int { return c.AdminDailyQuota }
	case models.RoleGuest.String():
		return func(c *config.ReservationConfig) int { return c.GuestDailyQuota }
	default:
		return func(c *config.ReservationConfig) int { return c.UserDailyQuota }
	}
}

// validateWindow applies the structural checks from §4.2 step 1.
func (s *ReservationService) validateWindow(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidWindow
	}
	if start.Second() != 0 || start.Nanosecond() != 0 || end.Second() != 0 || end.Nanosecond() != 0 {
		return ErrInvalidWindow
	}
	if start.Before(time.Now().Add(-s.cfg.GracePeriod)) {
		return ErrInThePast
	}
	duration := end.Sub(start)
	if duration < s.cfg.MinDuration {
		return ErrWindowTooShort
	}
	if duration > s.cfg.MaxDuration {
		return ErrWindowTooLong
	}
	return nil
}

// checkAdmission applies §4.2 step 2: resource availability, blackout
// dates and business hours.
func (s *ReservationService) checkAdmission(ctx context.Context, resourceID uuid.UUID, start, end time.Time) (*resourcemodels.Resource, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !res.BaseAvailable || res.Status == models.ResourceUnavailable.String() {
		return nil, ErrResourceInactive
	}

	blackouts, err := s.schedule.BlackoutsIntersecting(ctx, resourceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check blackout dates: %w", err)
	}
	if len(blackouts) > 0 {
		return nil, ErrBlackout
	}

	hours, err := s.schedule.BusinessHoursFor(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check business hours: %w", err)
	}
	if len(hours) > 0 && !withinBusinessHours(hours, start, end) {
		return nil, ErrOutsideHours
	}

	return res, nil
}

func withinBusinessHours(hours []*resourcemodels.BusinessHours, start, end time.Time) bool {
	byWeekday := make(map[int]*resourcemodels.BusinessHours, len(hours))
	for _, h := range hours {
		byWeekday[h.Weekday] = h
	}

	for day := start; day.Before(end); day = day.Add(24 * time.Hour) {
		h, ok := byWeekday[int(day.Weekday())]
		if !ok || h.Closed {
			return false
		}

		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		openAt := dayStart.Add(time.Duration(h.OpenMinute) * time.Minute)
		closeAt := dayStart.Add(time.Duration(h.CloseMinute) * time.Minute)

		segStart := day
		segEnd := dayStart.Add(24 * time.Hour)
		if segEnd.After(end) {
			segEnd = end
		}
		if segStart.Before(openAt) || segEnd.After(closeAt) {
			return false
		}
	}
	return true
}

func (s *ReservationService) checkQuota(ctx context.Context, userID uuid.UUID, role string) error {
	count, err := s.reservations.CountActiveToday(ctx, userID, time.Now())
	if err != nil {
		return err
	}
	if count >= dailyQuotaFor(role)(s.cfg) {
		return ErrQuotaExceeded
	}
	return nil
}

// Create books a single reservation (§4.2 Create).
func (s *ReservationService) Create(ctx context.Context, userID uuid.UUID, role string, req reservationmodels.CreateReservationRequest) (*reservationmodels.Reservation, error) {
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		return nil, ErrInvalidWindow
	}

	if err := s.validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if _, err := s.checkAdmission(ctx, resourceID, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, userID, role); err != nil {
		return nil, err
	}

	res := &reservationmodels.Reservation{
		TimestampedEntity: models.TimestampedEntity{Entity: models.Entity{ID: uuid.New()}},
		UserID:            userID,
		ResourceID:        resourceID,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Status:            models.ReservationActive.String(),
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		return nil, err
	}

	s.events.Publish("reservation.created", reservationEventPayload(res))
	return res, nil
}

// CreateRecurring expands a recurrence rule into concrete instances
// and persists them atomically (§4.2 Recurring create).
func (s *ReservationService) CreateRecurring(ctx context.Context, userID uuid.UUID, role string, req reservationmodels.CreateRecurringReservationRequest) ([]*reservationmodels.Reservation, error) {
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		return nil, ErrInvalidWindow
	}
	if err := s.validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	duration := req.EndTime.Sub(req.StartTime)
	starts, err := expandRecurrence(req, 365*24*time.Hour, maxRecurringOccurrences)
	if err != nil {
		return nil, err
	}

	instances := make([]*reservationmodels.Reservation, 0, len(starts))
	for _, start := range starts {
		end := start.Add(duration)
		if _, err := s.checkAdmission(ctx, resourceID, start, end); err != nil {
			return nil, err
		}
		instances = append(instances, &reservationmodels.Reservation{
			TimestampedEntity: models.TimestampedEntity{Entity: models.Entity{ID: uuid.New()}},
			UserID:            userID,
			ResourceID:        resourceID,
			StartTime:         start,
			EndTime:           end,
			Status:            models.ReservationActive.String(),
		})
	}

	if err := s.checkQuota(ctx, userID, role); err != nil {
		return nil, err
	}

	rule := &reservationmodels.RecurrenceRule{
		TimestampedEntity: models.TimestampedEntity{Entity: models.Entity{ID: uuid.New()}},
		Frequency:         req.Frequency,
		Interval:          req.Interval,
		EndPolicy:         req.EndPolicy,
		EndDate:           req.EndDate,
		OccurrenceCount:   req.OccurrenceCount,
	}
	if len(req.DaysOfWeek) > 0 {
		bitmap := daysOfWeekBitmap(req.DaysOfWeek)
		rule.DaysOfWeek = &bitmap
	}
	if err := s.recurrences.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to persist recurrence rule: %w", err)
	}

	for _, inst := range instances {
		inst.RecurrenceRuleID = &rule.ID
	}

	if err := s.reservations.CreateBatch(ctx, resourceID, instances); err != nil {
		return nil, err
	}

	for _, inst := range instances {
		s.events.Publish("reservation.created", reservationEventPayload(inst))
	}
	return instances, nil
}

func daysOfWeekBitmap(days []int) int {
	bitmap := 0
	for _, d := range days {
		bitmap |= 1 << uint(d)
	}
	return bitmap
}

// expandRecurrence generates the concrete start times of a recurrence
// rule, bounded by horizon and maxOccurrences (§4.2).
func expandRecurrence(req reservationmodels.CreateRecurringReservationRequest, horizon time.Duration, maxOccurrences int) ([]time.Time, error) {
	deadline := req.StartTime.Add(horizon)
	if req.EndPolicy == "on_date" && req.EndDate != nil && req.EndDate.Before(deadline) {
		deadline = *req.EndDate
	}

	var days map[int]bool
	if req.Frequency == "weekly" && len(req.DaysOfWeek) > 0 {
		days = make(map[int]bool, len(req.DaysOfWeek))
		for _, d := range req.DaysOfWeek {
			days[d] = true
		}
	}

	var out []time.Time
	cursor := req.StartTime

	for len(out) < maxOccurrences && !cursor.After(deadline) {
		if req.EndPolicy == "after_count" && req.OccurrenceCount != nil && len(out) >= *req.OccurrenceCount {
			break
		}

		switch req.Frequency {
		case "daily":
			out = append(out, cursor)
			cursor = cursor.AddDate(0, 0, req.Interval)
		case "weekly":
			if days == nil || days[int(cursor.Weekday())] {
				out = append(out, cursor)
			}
			cursor = cursor.AddDate(0, 0, 1)
			if days == nil {
				cursor = cursor.AddDate(0, 0, 7*req.Interval-1)
			}
		case "monthly":
			day := req.StartTime.Day()
			candidate := time.Date(cursor.Year(), cursor.Month(), 1, cursor.Hour(), cursor.Minute(), 0, 0, cursor.Location())
			lastDay := candidate.AddDate(0, 1, -1).Day()
			if day <= lastDay {
				out = append(out, time.Date(cursor.Year(), cursor.Month(), day, cursor.Hour(), cursor.Minute(), 0, 0, cursor.Location()))
			}
			cursor = candidate.AddDate(0, req.Interval, 0)
		default:
			return nil, ErrInvalidWindow
		}
	}

	if len(out) == 0 || len(out) > maxOccurrences {
		return nil, ErrRecurrenceBounds
	}
	return out, nil
}

// authorizeCancel applies the §4.2 Cancel ownership and timing rule:
// the owner may cancel only while the reservation is active and has
// not yet started; an admin may cancel an active reservation at any
// point. Already-cancelled/expired reservations are left to Cancel's
// idempotent no-op path regardless of who calls it.
func authorizeCancel(existing *reservationmodels.Reservation, userID uuid.UUID, role string, now time.Time) error {
	isAdmin := role == models.RoleAdmin.String()
	if existing.UserID != userID && !isAdmin {
		return ErrNotOwner
	}
	wasActive := existing.Status == models.ReservationActive.String()
	if !isAdmin && wasActive && !existing.StartTime.After(now) {
		return ErrAlreadyStarted
	}
	return nil
}

// Cancel cancels a reservation, owner or admin only, idempotent (§4.2 Cancel).
func (s *ReservationService) Cancel(ctx context.Context, userID uuid.UUID, role string, id uuid.UUID, reason string) (*reservationmodels.Reservation, error) {
	existing, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeCancel(existing, userID, role, time.Now()); err != nil {
		return nil, err
	}

	wasActive := existing.Status == models.ReservationActive.String()

	res, err := s.reservations.Cancel(ctx, id, userID, reason)
	if err != nil {
		return nil, err
	}

	if wasActive {
		s.events.Publish("reservation.cancelled", reservationEventPayload(res))
		if s.waitlist != nil {
			s.waitlist.Promote(ctx, res.ResourceID, res.StartTime, res.EndTime)
		}
	}

	return res, nil
}

// CreateForOffer books the reservation backing an accepted waitlist
// offer, re-running only the conflict check (§4.4 Accept) since the
// offer's window was already admitted when it was promoted. Satisfies
// the waitlist service's ReservationCreator interface.
func (s *ReservationService) CreateForOffer(ctx context.Context, userID, resourceID uuid.UUID, start, end time.Time) (uuid.UUID, error) {
	res := &reservationmodels.Reservation{
		TimestampedEntity: models.TimestampedEntity{Entity: models.Entity{ID: uuid.New()}},
		UserID:            userID,
		ResourceID:        resourceID,
		StartTime:         start,
		EndTime:           end,
		Status:            models.ReservationActive.String(),
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		return uuid.Nil, err
	}

	s.events.Publish("reservation.created", reservationEventPayload(res))
	return res.ID, nil
}

// ListMine returns the caller's reservations.
func (s *ReservationService) ListMine(ctx context.Context, userID uuid.UUID) ([]*reservationmodels.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// History returns a reservation's immutable audit trail.
func (s *ReservationService) History(ctx context.Context, id uuid.UUID) ([]*reservationmodels.HistoryEntry, error) {
	return s.reservations.ListHistory(ctx, id)
}

// ExpireDue runs the §4.7 reservation-expire sweep: every active
// reservation whose window has ended transitions to expired, frees
// its interval for waitlist promotion, and publishes an event.
func (s *ReservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.reservations.ListDueForExpiry(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, res := range due {
		if err := s.reservations.Expire(ctx, res.ID); err != nil {
			s.logger.Error("failed to expire reservation", "reservation_id", res.ID, "error", err)
			continue
		}
		res.Status = models.ReservationExpired.String()
		s.events.Publish("reservation.expired", reservationEventPayload(res))
		if s.waitlist != nil {
			s.waitlist.Promote(ctx, res.ResourceID, res.StartTime, res.EndTime)
		}
	}

	return len(due), nil
}

func reservationEventPayload(r *reservationmodels.Reservation) map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID.String(),
		"user_id":     r.UserID.String(),
		"resource_id": r.ResourceID.String(),
		"start_time":  r.StartTime,
		"end_time":    r.EndTime,
		"status":      r.Status,
	}
}
