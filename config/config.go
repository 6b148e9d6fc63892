// Package config contains chronosync configuration definitions.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/interests"
	"github.com/chronosync/go-chronosync/names"
	"github.com/chronosync/go-chronosync/syncstate"
)

// EnvPrefix is the prefix of environment variables that override config keys.
// The key sync.diff-log-size is overridden by CHRONOSYNC_SYNC_DIFF_LOG_SIZE.
const EnvPrefix = "chronosync"

// Config defines the top level configuration of a chronosync replica.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Sync       SyncConfig      `mapstructure:"sync"`
	Interests  InterestsConfig `mapstructure:"interests"`
	Logging    LoggerConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
}

// BaseConfig holds options that select how the rest of the config is built.
type BaseConfig struct {
	ConfigFile string `mapstructure:"config"`
	Preset     string `mapstructure:"preset"`
}

// SyncConfig configures the replica state.
type SyncConfig struct {
	// Prefix is the sync prefix sync requests are published under.
	Prefix string `mapstructure:"prefix"`
	// DigestAlgorithm is sha256 or blake3.
	DigestAlgorithm string `mapstructure:"digest-algorithm"`
	// SeqOrder is session-then-seq or same-session.
	SeqOrder string `mapstructure:"seq-order"`
	// NamePolicy is keep-forever or evict-unreferenced.
	NamePolicy string `mapstructure:"name-policy"`
	// DiffLogSize is the number of recent diffs kept for answering
	// requests with an older digest.
	DiffLogSize int `mapstructure:"diff-log-size"`
}

// InterestsConfig configures the pending request table.
type InterestsConfig struct {
	Lifetime    time.Duration `mapstructure:"lifetime"`
	CheckPeriod time.Duration `mapstructure:"check-period"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `mapstructure:"listen"`
	// PushURL is a prometheus push gateway. Empty disables pushing.
	PushURL    string        `mapstructure:"push-url"`
	PushPeriod time.Duration `mapstructure:"push-period"`
}

// DefaultConfig returns the default configuration of a replica.
func DefaultConfig() Config {
	return Config{
		Sync: SyncConfig{
			Prefix:          "/chronosync",
			DigestAlgorithm: digest.SHA256.String(),
			SeqOrder:        "session-then-seq",
			NamePolicy:      names.KeepForever.String(),
			DiffLogSize:     100,
		},
		Interests: InterestsConfig{
			Lifetime:    4 * time.Second,
			CheckPeriod: interests.DefaultCheckPeriod,
		},
		Logging: defaultLoggingConfig(),
		Metrics: MetricsConfig{
			PushPeriod: time.Minute,
		},
	}
}

// Validate checks that every option parses.
func (cfg *Config) Validate() error {
	var errs []error
	if _, err := digest.ParseAlgorithm(cfg.Sync.DigestAlgorithm); err != nil {
		errs = append(errs, err)
	}
	if _, err := syncstate.ParseOrder(cfg.Sync.SeqOrder); err != nil {
		errs = append(errs, err)
	}
	if _, err := names.ParsePolicy(cfg.Sync.NamePolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := names.ParseName(cfg.Sync.Prefix); err != nil {
		errs = append(errs, fmt.Errorf("sync prefix: %w", err))
	}
	if cfg.Sync.DiffLogSize <= 0 {
		errs = append(errs, fmt.Errorf("diff log size must be positive, got %d", cfg.Sync.DiffLogSize))
	}
	if cfg.Interests.Lifetime <= 0 || cfg.Interests.CheckPeriod <= 0 {
		errs = append(errs, errors.New("interest lifetime and check period must be positive"))
	}
	if cfg.Metrics.PushURL != "" && cfg.Metrics.PushPeriod <= 0 {
		errs = append(errs, errors.New("metrics push period must be positive"))
	}
	if err := cfg.Logging.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DecodeHook converts the string forms used in files and environment
// variables into config field types.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load builds the config on top of base. Values come, in increasing
// priority, from base, the config file at path (if any), environment
// variables and flags already bound to vip.
func Load(vip *viper.Viper, path string, base Config) (Config, error) {
	if err := setDefaults(vip, base); err != nil {
		return Config{}, err
	}
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()
	if path != "" {
		vip.SetConfigFile(path)
		if err := vip.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	conf := base
	if err := vip.Unmarshal(&conf, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	conf.ConfigFile = path
	if err := conf.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return conf, nil
}

// setDefaults registers every key of cfg with vip so that environment
// variables can override keys that appear in no file.
func setDefaults(vip *viper.Viper, cfg Config) error {
	var m map[string]any
	if err := mapstructure.Decode(cfg, &m); err != nil {
		return fmt.Errorf("flatten defaults: %w", err)
	}
	setDefaultsFrom(vip, "", m)
	return nil
}

func setDefaultsFrom(vip *viper.Viper, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			setDefaultsFrom(vip, key, nested)
			continue
		}
		vip.SetDefault(key, v)
	}
}
