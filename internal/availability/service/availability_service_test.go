// SPDX-License-Identifier: BSL-1.1

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slotforge/slotforge/internal/availability/models"
	reservationmodels "github.com/slotforge/slotforge/internal/reservation/models"
	resourcemodels "github.com/slotforge/slotforge/internal/resource/models"
)

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestClassifySegment_Blackout(t *testing.T) {
	start := day(2030, 1, 1, 9, 0)
	end := day(2030, 1, 1, 9, 15)
	blackouts := map[string]bool{"2030-01-01": true}

	available, reason := classifySegment(start, end, nil, blackouts, nil, false)
	assert.False(t, available)
	assert.Equal(t, models.ReasonBlackout, reason)
}

func TestClassifySegment_OutsideBusinessHours(t *testing.T) {
	start := day(2030, 1, 1, 8, 0) // Tuesday
	end := day(2030, 1, 1, 8, 15)
	hours := map[int]*resourcemodels.BusinessHours{
		int(time.Tuesday): {Weekday: int(time.Tuesday), OpenMinute: 9 * 60, CloseMinute: 17 * 60},
	}

	available, reason := classifySegment(start, end, hours, nil, nil, true)
	assert.False(t, available)
	assert.Equal(t, models.ReasonClosed, reason)
}

func TestClassifySegment_ClosedDay(t *testing.T) {
	start := day(2030, 1, 1, 10, 0)
	end := day(2030, 1, 1, 10, 15)
	hours := map[int]*resourcemodels.BusinessHours{
		int(time.Tuesday): {Weekday: int(time.Tuesday), Closed: true},
	}

	available, reason := classifySegment(start, end, hours, nil, nil, true)
	assert.False(t, available)
	assert.Equal(t, models.ReasonClosed, reason)
}

func TestClassifySegment_Reserved(t *testing.T) {
	start := day(2030, 1, 1, 9, 0)
	end := day(2030, 1, 1, 9, 15)
	active := []*reservationmodels.Reservation{
		{StartTime: day(2030, 1, 1, 9, 0), EndTime: day(2030, 1, 1, 10, 0)},
	}

	available, reason := classifySegment(start, end, nil, nil, active, false)
	assert.False(t, available)
	assert.Equal(t, models.ReasonReserved, reason)
}

func TestClassifySegment_AvailableWhenHoursNotEnforced(t *testing.T) {
	start := day(2030, 1, 1, 2, 0)
	end := day(2030, 1, 1, 2, 15)

	available, reason := classifySegment(start, end, nil, nil, nil, false)
	assert.True(t, available)
	assert.Empty(t, reason)
}

func TestAppendOrMerge_MergesAdjacentIdenticalSlots(t *testing.T) {
	var slots []models.Slot
	appendOrMerge(&slots, models.Slot{Start: day(2030, 1, 1, 9, 0), End: day(2030, 1, 1, 9, 15), Available: true})
	appendOrMerge(&slots, models.Slot{Start: day(2030, 1, 1, 9, 15), End: day(2030, 1, 1, 9, 30), Available: true})

	if assertLen(t, slots, 1) {
		assert.Equal(t, day(2030, 1, 1, 9, 0), slots[0].Start)
		assert.Equal(t, day(2030, 1, 1, 9, 30), slots[0].End)
	}
}

func TestAppendOrMerge_KeepsDistinctReasonsSeparate(t *testing.T) {
	var slots []models.Slot
	appendOrMerge(&slots, models.Slot{Start: day(2030, 1, 1, 9, 0), End: day(2030, 1, 1, 9, 15), Available: false, Reason: models.ReasonReserved})
	appendOrMerge(&slots, models.Slot{Start: day(2030, 1, 1, 9, 15), End: day(2030, 1, 1, 9, 30), Available: false, Reason: models.ReasonBlackout})

	assertLen(t, slots, 2)
}

func assertLen(t *testing.T, slots []models.Slot, n int) bool {
	t.Helper()
	return assert.Len(t, slots, n)
}

func TestResourceOccupancyStatus_UnavailableResourceIgnoresReservations(t *testing.T) {
	resource := &resourcemodels.Resource{BaseAvailable: false, Status: "available"}
	active := []*reservationmodels.Reservation{
		{StartTime: day(2030, 1, 1, 9, 0), EndTime: day(2030, 1, 1, 10, 0)},
	}

	status, until := resourceOccupancyStatus(resource, active, day(2030, 1, 1, 9, 30))
	assert.Equal(t, "unavailable", status)
	assert.Nil(t, until)
}

func TestResourceOccupancyStatus_ActiveReservationCoversNow(t *testing.T) {
	resource := &resourcemodels.Resource{BaseAvailable: true, Status: "available"}
	end := day(2030, 1, 1, 10, 0)
	active := []*reservationmodels.Reservation{
		{StartTime: day(2030, 1, 1, 9, 0), EndTime: end},
	}

	status, until := resourceOccupancyStatus(resource, active, day(2030, 1, 1, 9, 30))
	assert.Equal(t, "in_use", status)
	if assert.NotNil(t, until) {
		assert.Equal(t, end, *until)
	}
}

func TestResourceOccupancyStatus_NoActiveReservationIsAvailable(t *testing.T) {
	resource := &resourcemodels.Resource{BaseAvailable: true, Status: "available"}
	active := []*reservationmodels.Reservation{
		{StartTime: day(2030, 1, 1, 9, 0), EndTime: day(2030, 1, 1, 10, 0)},
	}

	status, until := resourceOccupancyStatus(resource, active, day(2030, 1, 1, 11, 0))
	assert.Equal(t, "available", status)
	assert.Nil(t, until)
}
