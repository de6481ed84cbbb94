// SPDX-License-Identifier: BSL-1.1

package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDayWindow_SpansMidnightToMidnight(t *testing.T) {
	now := time.Date(2030, time.March, 5, 14, 30, 0, 0, time.UTC)

	from, to := defaultDayWindow(now)

	assert.Equal(t, time.Date(2030, time.March, 5, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2030, time.March, 6, 0, 0, 0, 0, time.UTC), to)
}
