package logtest

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

const testLogLevel = "TEST_LOG_LEVEL"

// New creates a logger that will use testing.TB.Log internally.
// Unless a level is passed or TEST_LOG_LEVEL is set, logging is disabled.
func New(tb testing.TB, override ...zapcore.Level) *zap.Logger {
	var level zapcore.Level
	if len(override) > 0 {
		level = override[0]
	} else {
		lvl := os.Getenv(testLogLevel)
		if len(lvl) == 0 {
			return zap.NewNop()
		}
		if err := level.Set(lvl); err != nil {
			panic(err)
		}
	}
	return zaptest.NewLogger(tb, zaptest.Level(level))
}
