package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	t.Parallel()

	p, err := Init(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, p)

	// Noop providers shut down cleanly.
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdown_NilReceiver(t *testing.T) {
	t.Parallel()

	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewLogger_Defaults(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LogConfig{})
	require.NotNil(t, logger)
	logger.Info("smoke")

	console := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NotNil(t, console)
	console.Debug("smoke")
}
