// Package logging builds the structured zap loggers used by linewalk.
//
// Core paths take a *zap.Logger and log typed fields. Every entry written
// for a persisted run carries its run_id so log lines can be joined with
// stored traces.
package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		NameKey:     "logger",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// New creates a JSON logger writing to w. Verbose enables debug entries,
// which include one line per recorded event.
func New(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// ForRun returns a child logger carrying the run identity.
func ForRun(logger *zap.Logger, runID string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("run_id", runID))
}
