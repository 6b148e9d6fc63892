package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chronosync/go-chronosync/cmd"
	"github.com/chronosync/go-chronosync/metrics"
	"github.com/chronosync/go-chronosync/sim"
	"github.com/chronosync/go-chronosync/snapshot"
)

func newSimCmd(vip *viper.Viper) *cobra.Command {
	var (
		simCfg       = sim.DefaultConfig()
		snapshotPath string
		dumpMetrics  bool
	)
	c := &cobra.Command{
		Use:   "sim",
		Short: "Run in-process replicas until they agree on one state",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			conf, err := cmd.LoadConfig(vip)
			if err != nil {
				return err
			}
			loggers, err := cmd.NewLoggers(c.ErrOrStderr(), conf.Logging)
			if err != nil {
				return err
			}
			defer loggers.Sync()
			opts, err := cmd.LogicOpts(conf, loggers)
			if err != nil {
				return err
			}
			simCfg.Prefix = conf.Sync.Prefix

			ctx, cancel := context.WithCancel(c.Context())
			defer cancel()
			var eg errgroup.Group
			if conf.Metrics.Listen != "" {
				eg.Go(func() error {
					return metrics.Serve(ctx, loggers.Metrics, conf.Metrics.Listen)
				})
			}
			if conf.Metrics.PushURL != "" {
				eg.Go(func() error {
					metrics.Push(ctx, loggers.Metrics, clockwork.NewRealClock(),
						conf.Metrics.PushURL, "sim", conf.Metrics.PushPeriod)
					return nil
				})
			}

			res, runErr := sim.Run(ctx, loggers.App, simCfg, opts...)
			cancel()
			if err := eg.Wait(); err != nil {
				loggers.App.Warn("metrics export failed", zap.Error(err))
			}
			if res == nil {
				return runErr
			}
			out := c.OutOrStdout()
			for i, root := range res.Roots {
				fmt.Fprintf(out, "replica %d %s updates=%d\n", i, root, res.Updates[i])
			}
			if runErr != nil {
				return runErr
			}
			if snapshotPath != "" {
				if err := snapshot.Write(snapshotPath, res.Replicas[0].FullDiff()); err != nil {
					return err
				}
			}
			if dumpMetrics {
				return metrics.Dump(out, prometheus.DefaultGatherer)
			}
			return nil
		},
	}
	f := c.Flags()
	f.IntVar(&simCfg.Replicas, "replicas", simCfg.Replicas, "number of replicas")
	f.IntVar(&simCfg.Producers, "producers", simCfg.Producers, "producers per replica")
	f.IntVar(&simCfg.Updates, "updates", simCfg.Updates, "sequence numbers published by every producer")
	f.Uint64Var(&simCfg.Seed, "seed", simCfg.Seed, "seed for the order of publications")
	f.Float64Var(&simCfg.Rate, "rate", simCfg.Rate, "publications per second and replica, 0 for unlimited")
	f.DurationVar(&simCfg.SyncInterval, "sync-interval", simCfg.SyncInterval, "how often replicas send their digest")
	f.IntVar(&simCfg.InboxSize, "inbox-size", simCfg.InboxSize, "messages queued per replica before dropping")
	f.DurationVar(&simCfg.Timeout, "timeout", simCfg.Timeout, "give up after this long")
	f.StringVar(&snapshotPath, "snapshot", "", "save the final state of the first replica to this file")
	f.BoolVar(&dumpMetrics, "dump-metrics", false, "print metrics after the run")
	return c
}
