package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateIPFallback(t *testing.T) {
	limiter := newFallbackLimiter(Config{IPLimitPerMin: 1, BurstMultiplier: 1})
	ctx := context.Background()

	// Exhaust the IP's budget.
	for i := 0; i < 6; i++ {
		_, err := limiter.AllowIP(ctx, "203.0.113.10")
		require.NoError(t, err)
	}
	blocked, err := limiter.AllowIP(ctx, "203.0.113.10")
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	require.NoError(t, limiter.InvalidateIP(ctx, "203.0.113.10"))

	// A fresh limiter means a fresh burst allowance.
	result, err := limiter.AllowIP(ctx, "203.0.113.10")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestInvalidateAllFallback(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())
	ctx := context.Background()

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		_, err := limiter.AllowIP(ctx, ip)
		require.NoError(t, err)
	}
	require.Equal(t, 2, limiter.GetStats()["fallback_limiters"].(int))

	require.NoError(t, limiter.InvalidateAll(ctx))
	assert.Equal(t, 0, limiter.GetStats()["fallback_limiters"].(int))
}
