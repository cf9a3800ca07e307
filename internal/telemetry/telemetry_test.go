package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otelvault/otelvault/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	tel := New(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NotNil(t, tel)

	// Should return no-op providers
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))

	assert.False(t, tel.IsEnabled())
	assert.False(t, tel.Degraded())
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Degraded())
}

func TestTelemetry_ShutdownDisabled(t *testing.T) {
	tel := New(context.Background(), config.TelemetryConfig{Enabled: false}, nil)

	require.NoError(t, tel.Shutdown(context.Background()))
	require.NoError(t, tel.ForceFlush(context.Background()))
}
