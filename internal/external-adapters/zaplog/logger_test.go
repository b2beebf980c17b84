package zaplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ochairo/redist/internal/domain/interfaces"
)

func newObserved(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{sugar: zap.New(core).Sugar()}, logs
}

func TestLoggerLevels(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestLoggerFields(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.Info("fetched asset",
		interfaces.F("asset", "buf-Linux-x86_64"),
		interfaces.F("size", 12345))

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "buf-Linux-x86_64", fields["asset"])
	assert.EqualValues(t, 12345, fields["size"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel)

	logger.Debug("should be dropped")
	logger.Info("should be kept")

	require.Len(t, logs.All(), 1)
	assert.Equal(t, "should be kept", logs.All()[0].Message)
}

func TestNewDoesNotPanic(t *testing.T) {
	require.NotNil(t, New(Options{}))
	require.NotNil(t, New(Options{Verbose: true, JSON: true}))
}

func TestLoggerImplementsDomainInterface(t *testing.T) {
	var _ interfaces.Logger = New(Options{})
}
