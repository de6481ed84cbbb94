// SPDX-License-Identifier: BSL-1.1

package push

import (
	"testing"
	"time"

	"github.com/slotforge/pkg/eventbus"
)

func TestRelevantTo(t *testing.T) {
	tests := []struct {
		name     string
		data     interface{}
		userID   string
		expected bool
	}{
		{
			name:     "payload addressed to the caller",
			data:     map[string]interface{}{"user_id": "user-1"},
			userID:   "user-1",
			expected: true,
		},
		{
			name:     "payload addressed to someone else",
			data:     map[string]interface{}{"user_id": "user-2"},
			userID:   "user-1",
			expected: false,
		},
		{
			name:     "payload with no user_id is broadcast",
			data:     map[string]interface{}{"resource_id": "res-1"},
			userID:   "user-1",
			expected: true,
		},
		{
			name:     "non-map payload is broadcast",
			data:     "not a map",
			userID:   "user-1",
			expected: true,
		},
		{
			name:     "user_id of unexpected type is broadcast",
			data:     map[string]interface{}{"user_id": 42},
			userID:   "user-1",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := eventbus.Event{Type: "reservation.created", Timestamp: time.Now(), Data: tt.data}
			if got := relevantTo(event, tt.userID); got != tt.expected {
				t.Errorf("relevantTo() = %v, want %v", got, tt.expected)
			}
		})
	}
}
