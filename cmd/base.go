// Package cmd is the base package for the chronosync executables: flags,
// config loading and logger setup shared by all subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chronosync/go-chronosync/config"
	"github.com/chronosync/go-chronosync/config/presets"
	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/log"
	"github.com/chronosync/go-chronosync/logic"
	"github.com/chronosync/go-chronosync/names"
	"github.com/chronosync/go-chronosync/syncstate"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Branch is the git branch used to build the App. Designed to be overwritten by make.
	Branch string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// Ctx returns a context that is cancelled on interrupt.
func Ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// LoadConfig builds the config from the preset, the config file, the
// environment and the flags bound to vip.
func LoadConfig(vip *viper.Viper) (config.Config, error) {
	base := config.DefaultConfig()
	if name := vip.GetString("main.preset"); name != "" {
		var err error
		base, err = presets.Get(name)
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(vip, vip.GetString("main.config"), base)
}

// Loggers holds one logger per component, each with its configured level.
type Loggers struct {
	App       *zap.Logger
	Names     *zap.Logger
	State     *zap.Logger
	Interests *zap.Logger
	Logic     *zap.Logger
	Metrics   *zap.Logger
}

// NewLoggers builds the component loggers writing to w.
func NewLoggers(w io.Writer, cfg config.LoggerConfig) (*Loggers, error) {
	build := func(name, level string) (*zap.Logger, error) {
		logger, err := log.NewWithWriter(w, name, level, cfg.Encoder)
		if err != nil {
			return nil, fmt.Errorf("%s logger: %w", name, err)
		}
		return logger, nil
	}
	var (
		l   Loggers
		err error
	)
	for _, c := range []struct {
		dst   **zap.Logger
		name  string
		level string
	}{
		{&l.App, "app", cfg.AppLoggerLevel},
		{&l.Names, "names", cfg.NamesLoggerLevel},
		{&l.State, "state", cfg.StateLoggerLevel},
		{&l.Interests, "interests", cfg.InterestsLoggerLevel},
		{&l.Logic, "logic", cfg.SyncLogicLoggerLevel},
		{&l.Metrics, "metrics", cfg.MetricsLoggerLevel},
	} {
		if *c.dst, err = build(c.name, c.level); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

// Sync flushes all loggers.
func (l *Loggers) Sync() {
	for _, logger := range []*zap.Logger{l.App, l.Names, l.State, l.Interests, l.Logic, l.Metrics} {
		_ = logger.Sync()
	}
}

// LogicOpts translates the sync config into options for logic.New. The
// returned options share one name registry.
func LogicOpts(cfg config.Config, loggers *Loggers) ([]logic.Opt, error) {
	algo, err := digest.ParseAlgorithm(cfg.Sync.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	order, err := syncstate.ParseOrder(cfg.Sync.SeqOrder)
	if err != nil {
		return nil, err
	}
	policy, err := names.ParsePolicy(cfg.Sync.NamePolicy)
	if err != nil {
		return nil, err
	}
	reg := names.NewRegistry(
		names.WithPolicy(policy),
		names.WithDigestAlgorithm(algo),
		names.WithLogger(loggers.Names))
	return []logic.Opt{
		logic.WithLogger(loggers.Logic),
		logic.WithStateLogger(loggers.State),
		logic.WithInterestsLogger(loggers.Interests),
		logic.WithRegistry(reg),
		logic.WithDigestAlgorithm(algo),
		logic.WithOrder(order),
		logic.WithLogSize(cfg.Sync.DiffLogSize),
		logic.WithInterestLifetime(cfg.Interests.Lifetime),
		logic.WithCheckPeriod(cfg.Interests.CheckPeriod),
	}, nil
}
