// Package zaplog implements the domain Logger interface on top of zap.
package zaplog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ochairo/redist/internal/domain/interfaces"
)

// Options configures logger construction
type Options struct {
	// Verbose enables debug-level output.
	Verbose bool
	// JSON switches from console format to machine-readable output.
	JSON bool
}

// Logger adapts a zap SugaredLogger to interfaces.Logger
type Logger struct {
	sugar *zap.SugaredLogger
}

// New creates a logger writing to stderr. Diagnostics go to stderr so the
// command output on stdout stays scriptable.
func New(opts Options) *Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Verbose {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		//nolint:exhaustruct // Default encoder configuration values are fine
		encoder = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey:       "message",
			LevelKey:         "level",
			LineEnding:       zapcore.DefaultLineEnding,
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			EncodeTime:       zapcore.ISO8601TimeEncoder,
			EncodeDuration:   zapcore.StringDurationEncoder,
			ConsoleSeparator: ", ",
		})
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)

	return &Logger{sugar: zap.New(core).Sugar()}
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.sugar.Debugw(msg, flatten(fields)...)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.sugar.Infow(msg, flatten(fields)...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.sugar.Warnw(msg, flatten(fields)...)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.sugar.Errorw(msg, flatten(fields)...)
}

// Sync flushes buffered log entries before process exit
func (l *Logger) Sync() {
	//nolint:errcheck // Sync on stderr returns ENOTTY on some platforms
	l.sugar.Sync()
}

// flatten converts domain fields into zap's alternating key/value form
func flatten(fields []interfaces.Field) []interface{} {
	kvs := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		kvs = append(kvs, f.Key, f.Value)
	}
	return kvs
}
