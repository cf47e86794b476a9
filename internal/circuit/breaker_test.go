package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterThreeConsecutive429s(t *testing.T) {
	b := NewBreaker("test", 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := b.Call(context.Background(), func(ctx context.Context) (int, error) {
			return 429, nil
		})
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_TripsAfterFiveConsecutiveTransientFailures(t *testing.T) {
	b := NewBreaker("test", 50*time.Millisecond)

	for i := 0; i < 4; i++ {
		_, err := b.Call(context.Background(), func(ctx context.Context) (int, error) {
			return 0, errors.New("connection reset")
		})
		require.Error(t, err)
		assert.Equal(t, StateClosed, b.State(), "must not trip before the fifth consecutive transient failure")
	}
	_, err := b.Call(context.Background(), func(ctx context.Context) (int, error) {
		return 0, errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_SuccessResetsConsecutiveCounters(t *testing.T) {
	b := NewBreaker("test", 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		_, _ = b.Call(context.Background(), func(ctx context.Context) (int, error) { return 429, nil })
	}
	_, err := b.Call(context.Background(), func(ctx context.Context) (int, error) { return 200, nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())

	// Two more 429s after the reset should not trip the breaker: the streak
	// restarted at the success.
	for i := 0; i < 2; i++ {
		_, _ = b.Call(context.Background(), func(ctx context.Context) (int, error) { return 429, nil })
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_PermanentFailureDoesNotTrip(t *testing.T) {
	b := NewBreaker("test", 50*time.Millisecond)

	for i := 0; i < 10; i++ {
		_, _ = b.Call(context.Background(), func(ctx context.Context) (int, error) { return 404, nil })
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpenRejectsCallsUntilTimeout(t *testing.T) {
	b := NewBreaker("test", 30*time.Millisecond)
	for i := 0; i < 3; i++ {
		_, _ = b.Call(context.Background(), func(ctx context.Context) (int, error) { return 429, nil })
	}
	require.Equal(t, StateOpen, b.State())

	called := false
	_, err := b.Call(context.Background(), func(ctx context.Context) (int, error) {
		called = true
		return 200, nil
	})
	require.Error(t, err)
	assert.False(t, called, "open breaker must short-circuit without invoking fn")

	time.Sleep(40 * time.Millisecond)
	_, err = b.Call(context.Background(), func(ctx context.Context) (int, error) { return 200, nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}
