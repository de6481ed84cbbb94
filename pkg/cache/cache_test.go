// SPDX-License-Identifier: BSL-1.1

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, c.Set(ctx, "k", payload{Name: "resource-1"}, 0))

	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "resource-1", got.Name)

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, "k"))
	exists, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	var dest string
	err := c.Get(context.Background(), "missing", &dest)
	assert.Error(t, err)
}

func TestTieredPopulatesL1FromL2(t *testing.T) {
	ctx := context.Background()
	l1 := NewMemoryCache(time.Minute, time.Minute)
	l2 := NewMemoryCache(time.Minute, time.Minute)
	tiered := NewTiered(l1, l2)

	// Seed only l2, so the read misses l1 and must fall through to l2.
	require.NoError(t, l2.Set(ctx, "k", "v", 0))

	var dest string
	require.NoError(t, tiered.Get(ctx, "k", &dest))
	assert.Equal(t, "v", dest)

	inL1, err := l1.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, inL1)
}

func TestNoOpCache(t *testing.T) {
	c := &NoOpCache{}
	assert.False(t, c.IsEnabled())

	var dest string
	assert.Error(t, c.Get(context.Background(), "k", &dest))
	assert.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))

	exists, err := c.Exists(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, exists)
}
