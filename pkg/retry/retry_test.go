package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}

	base := errors.New("down")
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return base
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.Is(err, base))
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return NonRetryable(errors.New("schema mismatch"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsNonRetryable(err))
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(ctx, cfg, func() error {
			calls++
			return errors.New("down")
		})
	}()

	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDoRejectsBadConfig(t *testing.T) {
	err := Do(context.Background(), Config{InitialDelay: -1}, func() error { return nil })
	assert.Error(t, err)

	err = Do(context.Background(), Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, func() error { return nil })
	assert.Error(t, err)
}
