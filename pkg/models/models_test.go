// SPDX-License-Identifier: BSL-1.1

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleAdmin.IsValid())
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleGuest.IsValid())
	assert.False(t, Role("superuser").IsValid())
}

func TestResourceStatusIsValid(t *testing.T) {
	assert.True(t, ResourceAvailable.IsValid())
	assert.False(t, ResourceStatus("broken").IsValid())
}

func TestNewQuotaStatus(t *testing.T) {
	q := NewQuotaStatus(5, 5)
	assert.Equal(t, 0, q.Available)
	assert.False(t, q.CanCreate)
	assert.False(t, q.IsOverQuota)

	q = NewQuotaStatus(5, 6)
	assert.Equal(t, 0, q.Available)
	assert.True(t, q.IsOverQuota)

	q = NewQuotaStatus(5, 3)
	assert.Equal(t, 2, q.Available)
	assert.True(t, q.CanCreate)
}

func TestNewCursorPage(t *testing.T) {
	cursor := "abc"
	page := NewCursorPage([]int{1, 2, 3}, &cursor, true, nil)
	assert.Equal(t, []int{1, 2, 3}, page.Data)
	assert.True(t, page.HasMore)
	assert.Equal(t, "abc", *page.NextCursor)

	empty := NewCursorPage[int](nil, nil, false, nil)
	assert.Equal(t, []int{}, empty.Data)
}
