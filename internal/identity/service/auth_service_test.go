// SPDX-License-Identifier: BSL-1.1

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpaqueToken_ProducesDistinctHighEntropyValues(t *testing.T) {
	a, _, err := newOpaqueToken()
	require.NoError(t, err)
	b, _, err := newOpaqueToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHashReopenToken_Deterministic(t *testing.T) {
	assert.Equal(t, hashReopenToken("abc"), hashReopenToken("abc"))
	assert.NotEqual(t, hashReopenToken("abc"), hashReopenToken("abd"))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, constantTimeEqual("same-value", "same-value"))
	assert.False(t, constantTimeEqual("same-value", "different"))
	assert.False(t, constantTimeEqual("short", "a-much-longer-string"))
}
