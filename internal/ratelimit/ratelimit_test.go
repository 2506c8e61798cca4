package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	limiter := NewInMemoryLimiter(3, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "cust-1", now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 2-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "cust-1", now.Add(3*time.Second))
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, now.Add(time.Minute), res.RetryAt, "retry hint points at the oldest entry falling out")
}

func TestWindowSlides(t *testing.T) {
	limiter := NewInMemoryLimiter(2, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "cust-1", now)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, "cust-1", now.Add(30*time.Second))
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// first two entries age out after a full minute
	res, err = limiter.Allow(ctx, "cust-1", now.Add(61*time.Second))
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := NewInMemoryLimiter(1, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "cust-1", now)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "cust-2", now)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "cust-1", now)
	require.NoError(t, err)
	require.False(t, res.Allowed)
}
