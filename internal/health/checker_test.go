package health

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okProbe(name string) Probe {
	return ProbeFunc{ProbeName: name, Fn: func(ctx context.Context) error { return nil }}
}

func failingProbe(name, msg string) Probe {
	return ProbeFunc{ProbeName: name, Fn: func(ctx context.Context) error { return errors.New(msg) }}
}

func TestSnapshot_AllHealthy(t *testing.T) {
	checker := NewChecker(zap.NewNop(), okProbe("asr"), okProbe("medical_model"))

	snap := checker.Snapshot(context.Background())
	assert.Equal(t, "healthy", snap.Status)
	require.Len(t, snap.Services, 2)
	for _, s := range snap.Services {
		assert.True(t, s.Healthy)
		assert.Empty(t, s.Error)
	}
}

func TestSnapshot_Degraded(t *testing.T) {
	checker := NewChecker(zap.NewNop(),
		okProbe("asr"),
		failingProbe("tts", "connection refused"))

	snap := checker.Snapshot(context.Background())
	assert.Equal(t, "degraded", snap.Status)

	byName := make(map[string]ServiceStatus)
	for _, s := range snap.Services {
		byName[s.Name] = s
	}
	assert.True(t, byName["asr"].Healthy)
	assert.False(t, byName["tts"].Healthy)
	assert.Equal(t, "connection refused", byName["tts"].Error)
}

func TestSnapshot_Unhealthy(t *testing.T) {
	checker := NewChecker(zap.NewNop(),
		failingProbe("asr", "down"),
		failingProbe("tts", "down"))

	snap := checker.Snapshot(context.Background())
	assert.Equal(t, "unhealthy", snap.Status)
}

func TestCheck_AggregatesFailures(t *testing.T) {
	checker := NewChecker(zap.NewNop(),
		okProbe("database"),
		failingProbe("asr", "timeout"),
		failingProbe("medical_model", "bad gateway"))

	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asr: timeout")
	assert.Contains(t, err.Error(), "medical_model: bad gateway")

	assert.NoError(t, NewChecker(zap.NewNop(), okProbe("database")).Check(context.Background()))
}

func TestRegister_AddsProbe(t *testing.T) {
	checker := NewChecker(zap.NewNop())
	checker.Register(okProbe("database"))

	snap := checker.Snapshot(context.Background())
	require.Len(t, snap.Services, 1)
	assert.Equal(t, "database", snap.Services[0].Name)
}
