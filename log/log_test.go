package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	defaultLogger := Logger
	t.Cleanup(func() { Logger = defaultLogger })

	require.NotNil(t, Logger)
	assert.False(t, Logger.Core().Enabled(zapcore.ErrorLevel))

	require.NoError(t, InitLogger("warn"))
	assert.False(t, Logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger.Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, InitLogger("loud"))
}
