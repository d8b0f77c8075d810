package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts:     5,
		InitialDelay:    time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: func(error) bool { return true },
	}

	err := RetryWithConfig(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts:     5,
		InitialDelay:    time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: func(error) bool { return false },
	}

	permanent := errors.New("bad request")
	err := RetryWithConfig(context.Background(), cfg, func() error {
		attempts++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: func(error) bool { return true },
	}

	err := RetryWithConfig(context.Background(), cfg, func() error {
		attempts++
		return errors.New("still down")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func() error { return errors.New("never runs far") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	var opened int
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Hour,
		OnStateChange: func(from, to CircuitBreakerState) {
			if to == StateOpen {
				opened++
			}
		},
	})

	failing := func() error { return errors.New("down") }

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Call(failing))
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 1, opened)

	// Further calls are rejected without invoking the function.
	err := cb.Call(func() error {
		t.Fatal("must not be called while open")
		return nil
	})
	var cbErr *CircuitBreakerError
	require.True(t, errors.As(err, &cbErr))
	assert.Equal(t, StateOpen, cbErr.State)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	failing := func() error { return errors.New("down") }
	for i := 0; i < 2; i++ {
		_ = cb.Call(failing)
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	ok := func() error { return nil }
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerRegistry(t *testing.T) {
	reg := NewCircuitBreakerRegistry()

	a := reg.GetOrCreate("gemini", CircuitBreakerConfig{})
	b := reg.GetOrCreate("gemini", CircuitBreakerConfig{})
	assert.Same(t, a, b)

	stats := reg.GetStats()
	require.Contains(t, stats, "gemini")
	entry := stats["gemini"].(map[string]interface{})
	assert.Equal(t, "closed", entry["state"])
}
