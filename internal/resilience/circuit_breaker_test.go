package resilience

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  50 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("asr", testBreakerConfig())

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("asr", testBreakerConfig())

	cb.Execute(func() error { return errUpstream })
	cb.Execute(func() error { return errUpstream })
	require.NoError(t, cb.Execute(func() error { return nil }))
	cb.Execute(func() error { return errUpstream })
	cb.Execute(func() error { return errUpstream })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	cb := NewCircuitBreaker("asr", testBreakerConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)

	// The probe call is allowed through and succeeds, closing the circuit.
	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("asr", testBreakerConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}
	time.Sleep(60 * time.Millisecond)

	err := cb.Execute(func() error { return errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker("medical_model", testBreakerConfig())

	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errUpstream })

	stats := cb.Stats()
	assert.Equal(t, "medical_model", stats.Name)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.SuccessRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)
	assert.Equal(t, "closed", stats.State)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("tts", testBreakerConfig())

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return errUpstream })
	}
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}
