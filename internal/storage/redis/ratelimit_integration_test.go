//go:build integration

package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	client, err := NewClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	l := NewRateLimiter(client, 2, time.Minute)
	now := time.Now().Truncate(time.Minute)

	for i := range 2 {
		d, err := l.Allow(ctx, "10.0.0.1", now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1-i, d.Remaining)
		assert.Equal(t, now.Add(time.Minute), d.ResetAt)
	}

	d, err := l.Allow(ctx, "10.0.0.1", now.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "10.0.0.2", now)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are independent")

	d, err = l.Allow(ctx, "10.0.0.1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, d.Allowed, "next window starts fresh")

	ttl, err := client.PTTL(ctx, rateLimitPrefix+"10.0.0.1:"+strconv.FormatInt(now.UnixMilli(), 10)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
