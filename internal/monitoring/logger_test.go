package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStreams_RouteToLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Opsf("ops %d", 1)
	Diagf("diag %d", 2)
	Tracef("trace %d", 3)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "ops 1", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "diag 2", entries[1].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
	assert.Equal(t, "trace 3", entries[2].Message)
}

func TestSetLogger_NilMutes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	SetLogger(nil)

	// These should not panic and should not reach the old core.
	Opsf("test message")
	Diagf("test message")
	Tracef("test message")
	Sync()

	assert.Equal(t, 0, logs.Len())
}

func TestLogger_DefaultIsNop(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	require.NotNil(t, l)
	l.Infof("discarded %s", "value")
}

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		l, err := NewLogger(debug)
		require.NoError(t, err)
		require.NotNil(t, l)
	}
}
