package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testRetryConfig(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errUpstream
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testRetryConfig(), func(ctx context.Context) error {
		attempts++
		return errUpstream
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnOpenCircuit(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testRetryConfig(), func(ctx context.Context) error {
		attempts++
		return ErrCircuitOpen
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := testRetryConfig()
	cfg.BaseDelay = 100 * time.Millisecond

	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		attempts++
		return errUpstream
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestJitter_StaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := jitter(base, 0.25)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
	assert.Equal(t, base, jitter(base, 0))
}

func TestWrapper_FailsFastWhenBreakerOpen(t *testing.T) {
	cfg := WrapperConfig{
		Breaker: testBreakerConfig(),
		Retry:   testRetryConfig(),
		// Generous per-attempt timeout so it never interferes here.
		AttemptTimeout: time.Second,
	}
	w := NewWrapper("asr", cfg)

	// Breaker threshold is 3; each Do burns one breaker failure after
	// exhausting its retries.
	for i := 0; i < 3; i++ {
		err := w.Do(context.Background(), func(ctx context.Context) error { return errUpstream })
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, w.Breaker().State())

	calls := 0
	err := w.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestRegistry_StatsSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register("tts", DefaultWrapperConfig())
	r.Register("asr", DefaultWrapperConfig())
	r.Register("medical_model", DefaultWrapperConfig())

	stats := r.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, "asr", stats[0].Name)
	assert.Equal(t, "medical_model", stats[1].Name)
	assert.Equal(t, "tts", stats[2].Name)

	_, ok := r.Get("asr")
	assert.True(t, ok)
	_, ok = r.Get("unknown")
	assert.False(t, ok)
}
