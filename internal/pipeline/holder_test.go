package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderRefreshKeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	first := newTestContext(t, probeInputs(), testConfig())
	second := newTestContext(t, probeInputs(), testConfig())

	var calls atomic.Int32
	fail := errors.New("source offline")
	load := func(context.Context) (*AnalysisContext, error) {
		switch calls.Add(1) {
		case 1:
			return first, nil
		case 2:
			return nil, fail
		default:
			return second, nil
		}
	}

	h, err := NewHolder(context.Background(), load)
	require.NoError(t, err)
	assert.Same(t, first, h.Current())

	err = h.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fail)
	assert.Same(t, first, h.Current())

	require.NoError(t, h.Refresh(context.Background()))
	assert.Same(t, second, h.Current())
}

func TestNewHolderInitialFailure(t *testing.T) {
	t.Parallel()

	_, err := NewHolder(context.Background(), func(context.Context) (*AnalysisContext, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)

	_, err = NewHolder(context.Background(), nil)
	assert.Error(t, err)
}

func TestHolderWatch(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())
	var calls atomic.Int32
	h, err := NewHolder(context.Background(), func(context.Context) (*AnalysisContext, error) {
		calls.Add(1)
		return ac, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestHolderWatchDisabled(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())
	h, err := NewHolder(context.Background(), func(context.Context) (*AnalysisContext, error) { return ac, nil })
	require.NoError(t, err)

	// Returns immediately without a ticker.
	h.Watch(context.Background(), 0)
}
