package db

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := retry(context.Background(), RetryConfig{Attempts: 3, Backoff: time.Millisecond}, "ping", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("dial: %w", syscall.ECONNREFUSED)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := retry(context.Background(), RetryConfig{Attempts: 5, Backoff: time.Millisecond}, "ping", func(context.Context) error {
		calls++
		return errors.New("password authentication failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry(context.Background(), RetryConfig{Attempts: 2, Backoff: time.Millisecond}, "ping", func(context.Context) error {
		calls++
		return errors.New("connection reset by peer")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ZeroAttemptsTriesOnce(t *testing.T) {
	calls := 0
	_ = retry(context.Background(), RetryConfig{}, "ping", func(context.Context) error {
		calls++
		return errors.New("i/o timeout")
	})
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, RetryConfig{Attempts: 5, Backoff: time.Hour}, "ping", func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{Backoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	d0 := backoff(0, cfg)
	assert.GreaterOrEqual(t, d0, 75*time.Millisecond)
	assert.LessOrEqual(t, d0, 125*time.Millisecond)

	d5 := backoff(5, cfg)
	assert.LessOrEqual(t, d5, 375*time.Millisecond)
	assert.GreaterOrEqual(t, d5, 225*time.Millisecond)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.True(t, isTransient(fmt.Errorf("x: %w", syscall.ECONNRESET)))
	assert.True(t, isTransient(errors.New("FATAL: the database system is starting up")))
	assert.False(t, isTransient(errors.New("syntax error")))
}
