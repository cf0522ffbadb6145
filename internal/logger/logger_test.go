package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	log, err := NewLogger("info", "json", "pqmap-analyzer")

	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()

	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	log, err := NewLogger("debug", "console", "")

	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	log, err := NewLogger("verbose", "json", "pqmap-analyzer")

	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()

	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}
