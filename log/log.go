// Package log builds the zap loggers used by the sync components.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleEncoder writes human readable log lines.
	ConsoleEncoder = "console"
	// JSONEncoder writes one JSON object per line.
	JSONEncoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// NewNop creates silent logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// New creates a named logger with the given level and encoder.
func New(name, level, encoder string) (*zap.Logger, error) {
	return NewWithWriter(logWriter, name, level, encoder)
}

// NewWithWriter is like New but writes to w.
func NewWithWriter(w io.Writer, name, level, encoder string, hooks ...func(zapcore.Entry) error) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	var enc zapcore.Encoder
	switch encoder {
	case "", ConsoleEncoder:
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	case JSONEncoder:
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log encoder %q", encoder)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(name), nil
}
