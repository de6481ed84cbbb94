// SPDX-License-Identifier: BSL-1.1

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	waitlistmodels "github.com/slotforge/slotforge/internal/waitlist/models"
)

func window(startHour, endHour int) (time.Time, time.Time) {
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(startHour) * time.Hour), base.Add(time.Duration(endHour) * time.Hour)
}

func TestEntryMatchesFreedInterval_HardWindowIntersects(t *testing.T) {
	desiredStart, desiredEnd := window(9, 10)
	e := &waitlistmodels.Entry{DesiredStart: desiredStart, DesiredEnd: desiredEnd}

	freedStart, freedEnd := window(9, 10)
	assert.True(t, entryMatchesFreedInterval(e, freedStart, freedEnd))
}

func TestEntryMatchesFreedInterval_HardWindowNoIntersection(t *testing.T) {
	desiredStart, desiredEnd := window(9, 10)
	e := &waitlistmodels.Entry{DesiredStart: desiredStart, DesiredEnd: desiredEnd}

	freedStart, freedEnd := window(10, 11) // touches, does not intersect
	assert.False(t, entryMatchesFreedInterval(e, freedStart, freedEnd))
}

func TestEntryMatchesFreedInterval_FlexibleAcceptsAnyLongEnoughInterval(t *testing.T) {
	desiredStart, desiredEnd := window(14, 15) // 1 hour requested, nowhere near the freed window
	e := &waitlistmodels.Entry{DesiredStart: desiredStart, DesiredEnd: desiredEnd, FlexibleTime: true}

	freedStart, freedEnd := window(9, 11) // 2 hours free elsewhere
	assert.True(t, entryMatchesFreedInterval(e, freedStart, freedEnd))
}

func TestEntryMatchesFreedInterval_FlexibleRejectsTooShortInterval(t *testing.T) {
	desiredStart, desiredEnd := window(14, 16) // 2 hours requested
	e := &waitlistmodels.Entry{DesiredStart: desiredStart, DesiredEnd: desiredEnd, FlexibleTime: true}

	freedStart, freedEnd := window(9, 9) // degenerate, zero length
	freedEnd = freedEnd.Add(30 * time.Minute)
	assert.False(t, entryMatchesFreedInterval(e, freedStart, freedEnd))
}

func TestEntryMatchesFreedInterval_InflexibleIgnoresDurationOnlyMatches(t *testing.T) {
	desiredStart, desiredEnd := window(14, 15)
	e := &waitlistmodels.Entry{DesiredStart: desiredStart, DesiredEnd: desiredEnd, FlexibleTime: false}

	freedStart, freedEnd := window(9, 11) // long enough, but not flexible and not intersecting
	assert.False(t, entryMatchesFreedInterval(e, freedStart, freedEnd))
}

// TestPromotionFIFOOrder verifies the §4.4/§8 FIFO invariant: among
// several matching waiting entries, the algorithm picks the frontmost
// one whose window matches, skipping earlier entries that don't match.
func TestPromotionFIFOOrder(t *testing.T) {
	freedStart, freedEnd := window(9, 10)

	nonMatching := &waitlistmodels.Entry{
		DesiredStart: mustWindow(11, 12),
		DesiredEnd:   mustWindowEnd(11, 12),
		Position:     1,
	}
	firstMatch := &waitlistmodels.Entry{
		DesiredStart: freedStart,
		DesiredEnd:   freedEnd,
		Position:     2,
	}
	secondMatch := &waitlistmodels.Entry{
		DesiredStart: freedStart,
		DesiredEnd:   freedEnd,
		Position:     3,
	}

	waiting := []*waitlistmodels.Entry{nonMatching, firstMatch, secondMatch}

	var offered *waitlistmodels.Entry
	for _, e := range waiting {
		if entryMatchesFreedInterval(e, freedStart, freedEnd) {
			offered = e
			break
		}
	}

	if assert.NotNil(t, offered) {
		assert.Equal(t, firstMatch.Position, offered.Position)
	}
}

func mustWindow(startHour, endHour int) time.Time {
	s, _ := window(startHour, endHour)
	return s
}

func mustWindowEnd(startHour, endHour int) time.Time {
	_, e := window(startHour, endHour)
	return e
}
