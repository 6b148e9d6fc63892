package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = "console"
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = "json"
)

// LoggerConfig holds the logging level for each component.
type LoggerConfig struct {
	Encoder              LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel       string     `mapstructure:"app"`
	NamesLoggerLevel     string     `mapstructure:"names"`
	StateLoggerLevel     string     `mapstructure:"state"`
	InterestsLoggerLevel string     `mapstructure:"interests"`
	SyncLogicLoggerLevel string     `mapstructure:"logic"`
	MetricsLoggerLevel   string     `mapstructure:"metrics"`
}

func defaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:              ConsoleLogEncoder,
		AppLoggerLevel:       defaultLoggingLevel.String(),
		NamesLoggerLevel:     defaultLoggingLevel.String(),
		StateLoggerLevel:     defaultLoggingLevel.String(),
		InterestsLoggerLevel: defaultLoggingLevel.String(),
		SyncLogicLoggerLevel: defaultLoggingLevel.String(),
		MetricsLoggerLevel:   defaultLoggingLevel.String(),
	}
}

func (c *LoggerConfig) validate() error {
	switch c.Encoder {
	case ConsoleLogEncoder, JSONLogEncoder:
	default:
		return fmt.Errorf("unknown log encoder %q", c.Encoder)
	}
	for _, lvl := range []string{
		c.AppLoggerLevel,
		c.NamesLoggerLevel,
		c.StateLoggerLevel,
		c.InterestsLoggerLevel,
		c.SyncLogicLoggerLevel,
		c.MetricsLoggerLevel,
	} {
		if _, err := zap.ParseAtomicLevel(lvl); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	return nil
}
