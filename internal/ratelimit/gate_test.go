package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leeksaver/internal/errkind"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	g := New(Config{Capacity: 5, RefillPerSec: 100, MaxAttempts: 3, BaseDelay: time.Millisecond, CallDeadline: time.Second})

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableKinds(t *testing.T) {
	g := New(Config{Capacity: 5, RefillPerSec: 100, MaxAttempts: 3, BaseDelay: time.Millisecond, CallDeadline: time.Second})

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errkind.New(errkind.UpstreamUnavailable, "test", errors.New("503"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	g := New(Config{Capacity: 5, RefillPerSec: 100, MaxAttempts: 2, BaseDelay: time.Millisecond, CallDeadline: time.Second})

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errkind.New(errkind.RateLimited, "test", errors.New("429"))
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, errkind.Is(err, errkind.RateLimited))
}

func TestDo_NeverRetriesNonRetryableKinds(t *testing.T) {
	g := New(Config{Capacity: 5, RefillPerSec: 100, MaxAttempts: 5, BaseDelay: time.Millisecond, CallDeadline: time.Second})

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errkind.New(errkind.SchemaDrift, "test", errors.New("bad schema"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RespectsCallDeadline(t *testing.T) {
	g := New(Config{Capacity: 5, RefillPerSec: 100, MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, CallDeadline: 10 * time.Millisecond})

	err := g.Do(context.Background(), func(ctx context.Context) error {
		return errkind.New(errkind.UpstreamUnavailable, "test", errors.New("slow"))
	})

	require.Error(t, err)
}

func TestNew_DefaultsZeroFields(t *testing.T) {
	g := New(Config{})
	assert.Equal(t, 3, g.maxAttempts)
	assert.Equal(t, time.Second, g.base)
	assert.Equal(t, 60*time.Second, g.callDeadline)
}
