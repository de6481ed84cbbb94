// SPDX-License-Identifier: BSL-1.1

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name   string
		roles  []string
		kind   ResourceKind
		action Action
		want   bool
	}{
		{"admin manages resources", []string{RoleAdmin}, KindResource, ActionDelete, true},
		{"user cannot delete resources", []string{RoleUser}, KindResource, ActionDelete, false},
		{"user can create reservations", []string{RoleUser}, KindReservation, ActionCreate, true},
		{"guest cannot create reservations", []string{RoleGuest}, KindReservation, ActionCreate, false},
		{"unknown role denies", []string{"superuser"}, KindReservation, ActionCreate, false},
		{"role set union grants", []string{RoleGuest, RoleAdmin}, KindResource, ActionDelete, true},
		{"empty role set denies", nil, KindResource, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.roles, tt.kind, tt.action))
		})
	}
}
