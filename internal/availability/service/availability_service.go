// SPDX-License-Identifier: BSL-1.1

// Package service implements the availability projector (§4.3): it
// composes resource status, business hours, blackout dates and active
// reservations into a read-only schedule, never writing anything
// itself. All queries run straight against the same tables the
// reservation engine writes, so a committed create is observable by
// the very next call here (no cache layer sits in between).
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgmodels "github.com/slotforge/pkg/models"
	"github.com/slotforge/slotforge/internal/availability/models"
	"github.com/slotforge/slotforge/internal/config"
	reservationmodels "github.com/slotforge/slotforge/internal/reservation/models"
	reservationrepo "github.com/slotforge/slotforge/internal/reservation/repository"
	resourcemodels "github.com/slotforge/slotforge/internal/resource/models"
	resourcerepo "github.com/slotforge/slotforge/internal/resource/repository"
)

var (
	ErrResourceNotFound   = errors.New("resource not found")
	ErrInvalidWindow      = errors.New("window end must be after start")
	ErrInvalidGranularity = errors.New("granularity must be a positive duration")
)

// nextAvailableScanStep bounds how finely next_available and
// available_slots walk their window looking for a free opening;
// schedule() itself uses the caller-supplied granularity.
const nextAvailableScanStep = 15 * time.Minute

// AvailabilityService projects resource occupancy over a time window.
type AvailabilityService struct {
	resources     *resourcerepo.ResourceRepository
	schedule      *resourcerepo.ScheduleRepository
	reservations  *reservationrepo.ReservationRepository
	horizon       time.Duration
	hoursEnforced bool
}

// NewAvailabilityService creates a new availability service.
func NewAvailabilityService(
	resources *resourcerepo.ResourceRepository,
	schedule *resourcerepo.ScheduleRepository,
	reservations *reservationrepo.ReservationRepository,
	cfg *config.AvailabilityConfig,
) *AvailabilityService {
	return &AvailabilityService{
		resources:     resources,
		schedule:      schedule,
		reservations:  reservations,
		horizon:       cfg.ProjectionHorizon,
		hoursEnforced: cfg.BusinessHoursEnforced,
	}
}

// Schedule projects [from, to) into an ordered, merged list of slots
// at the given granularity (§4.3 schedule()).
func (s *AvailabilityService) Schedule(ctx context.Context, resourceID uuid.UUID, from, to time.Time, granularity time.Duration) ([]models.Slot, error) {
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}
	if granularity <= 0 {
		return nil, ErrInvalidGranularity
	}

	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%w", ErrResourceNotFound)
	}

	if resource.IsUnavailable() {
		return []models.Slot{{Start: from, End: to, Available: false, Reason: models.ReasonDisabled}}, nil
	}

	hours, err := s.schedule.BusinessHoursFor(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	byWeekday := make(map[int]*resourcemodels.BusinessHours, len(hours))
	for _, h := range hours {
		byWeekday[h.Weekday] = h
	}

	blackouts, err := s.schedule.BlackoutsIntersecting(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}
	blackoutDates := make(map[string]bool, len(blackouts))
	for _, b := range blackouts {
		blackoutDates[b.Date.Format("2006-01-02")] = true
	}

	active, err := s.reservations.ActiveInRange(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}

	var slots []models.Slot
	for t := from; t.Before(to); t = t.Add(granularity) {
		segEnd := t.Add(granularity)
		if segEnd.After(to) {
			segEnd = to
		}

		available, reason := classifySegment(t, segEnd, byWeekday, blackoutDates, active, s.hoursEnforced)
		appendOrMerge(&slots, models.Slot{Start: t, End: segEnd, Available: available, Reason: reason})
	}

	return slots, nil
}

func classifySegment(
	start, end time.Time,
	byWeekday map[int]*resourcemodels.BusinessHours,
	blackoutDates map[string]bool,
	active []*reservationmodels.Reservation,
	hoursEnforced bool,
) (bool, string) {
	if blackoutDates[start.Format("2006-01-02")] {
		return false, models.ReasonBlackout
	}

	if hoursEnforced {
		h, ok := byWeekday[int(start.Weekday())]
		if !ok || h.Closed {
			return false, models.ReasonClosed
		}
		dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		openAt := dayStart.Add(time.Duration(h.OpenMinute) * time.Minute)
		closeAt := dayStart.Add(time.Duration(h.CloseMinute) * time.Minute)
		if start.Before(openAt) || end.After(closeAt) {
			return false, models.ReasonClosed
		}
	}

	for _, r := range active {
		if r.Overlaps(start, end) {
			return false, models.ReasonReserved
		}
	}

	return true, ""
}

// appendOrMerge extends the last slot in place when it shares the
// same availability and reason as the new one, keeping the projection
// output compact instead of one entry per granularity step.
func appendOrMerge(slots *[]models.Slot, next models.Slot) {
	if n := len(*slots); n > 0 {
		last := &(*slots)[n-1]
		if last.Available == next.Available && last.Reason == next.Reason && last.End.Equal(next.Start) {
			last.End = next.End
			return
		}
	}
	*slots = append(*slots, next)
}

// AvailableSlots returns the free sub-intervals of a single calendar
// date, merged (§4.3 available_slots()).
func (s *AvailabilityService) AvailableSlots(ctx context.Context, resourceID uuid.UUID, date time.Time) ([]models.Slot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	slots, err := s.Schedule(ctx, resourceID, dayStart, dayEnd, nextAvailableScanStep)
	if err != nil {
		return nil, err
	}

	var free []models.Slot
	for _, slot := range slots {
		if slot.Available {
			free = append(free, slot)
		}
	}
	return free, nil
}

// NextAvailable returns the earliest start at or after now such that a
// free interval of at least minDuration begins there, scanning up to
// the projection horizon. Returns nil if none is found (§4.3
// next_available()).
func (s *AvailabilityService) NextAvailable(ctx context.Context, resourceID uuid.UUID, minDuration time.Duration) (*time.Time, error) {
	now := time.Now()
	horizonEnd := now.Add(s.horizon)

	slots, err := s.Schedule(ctx, resourceID, now, horizonEnd, nextAvailableScanStep)
	if err != nil {
		return nil, err
	}

	for _, slot := range slots {
		if slot.Available && slot.End.Sub(slot.Start) >= minDuration {
			start := slot.Start
			return &start, nil
		}
	}
	return nil, nil
}

// resourceOccupancyStatus buckets one resource's live occupancy from
// its reservations active "now"; Summary and Status both build on
// this so the two endpoints can never disagree about the same
// resource.
func resourceOccupancyStatus(resource *resourcemodels.Resource, active []*reservationmodels.Reservation, now time.Time) (string, *time.Time) {
	if resource.IsUnavailable() {
		return string(pkgmodels.ResourceUnavailable), nil
	}

	for _, res := range active {
		if !res.StartTime.After(now) && res.EndTime.After(now) {
			until := res.EndTime
			return string(pkgmodels.ResourceInUse), &until
		}
	}

	return string(pkgmodels.ResourceAvailable), nil
}

// Summary counts resources by current occupancy state (§4.3 summary()).
func (s *AvailabilityService) Summary(ctx context.Context) (*models.Summary, error) {
	resources, err := s.resources.List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := &models.Summary{}
	for _, r := range resources {
		var active []*reservationmodels.Reservation
		if !r.IsUnavailable() {
			active, err = s.reservations.ActiveInRange(ctx, r.ID, now, now.Add(time.Minute))
			if err != nil {
				return nil, err
			}
		}

		status, _ := resourceOccupancyStatus(r, active, now)
		switch status {
		case string(pkgmodels.ResourceUnavailable):
			summary.UnavailableNow++
		case string(pkgmodels.ResourceInUse):
			summary.ReservedNow++
		default:
			summary.AvailableNow++
		}
	}

	return summary, nil
}

// Status reports a single resource's live occupancy: Resource.Status
// only changes when a reservation is created, cancelled or expires,
// so this recomputes it the same way Summary does, scoped to one id
// (§4.3).
func (s *AvailabilityService) Status(ctx context.Context, resourceID uuid.UUID) (*models.Status, error) {
	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%w", ErrResourceNotFound)
	}

	now := time.Now()
	var active []*reservationmodels.Reservation
	if !resource.IsUnavailable() {
		active, err = s.reservations.ActiveInRange(ctx, resourceID, now, now.Add(time.Minute))
		if err != nil {
			return nil, err
		}
	}

	status, until := resourceOccupancyStatus(resource, active, now)
	return &models.Status{ResourceID: resourceID, Status: status, ActiveUntil: until}, nil
}

// Availability composes live status with the schedule for a window
// (the handler defaults it to the whole current day when the caller
// omits one) — the lighter-weight projection named alongside schedule()
// in §4.3, for callers that just want "is this usable right now and
// today" without picking a granularity themselves.
func (s *AvailabilityService) Availability(ctx context.Context, resourceID uuid.UUID, from, to time.Time) (*models.Availability, error) {
	status, err := s.Status(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	slots, err := s.Schedule(ctx, resourceID, from, to, nextAvailableScanStep)
	if err != nil {
		return nil, err
	}

	return &models.Availability{ResourceID: resourceID, Status: status.Status, Slots: slots}, nil
}
