package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chronosync/go-chronosync/cmd"
	"github.com/chronosync/go-chronosync/logic"
	"github.com/chronosync/go-chronosync/snapshot"
)

// leafArg is a producer given as name=seq or name=session:seq.
type leafArg struct {
	name    string
	session uint64
	seq     uint64
}

func parseLeafArg(s string) (leafArg, error) {
	name, seqs, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return leafArg{}, fmt.Errorf("leaf %q: want name=seq or name=session:seq", s)
	}
	arg := leafArg{name: name}
	session, seq, hasSession := strings.Cut(seqs, ":")
	if !hasSession {
		seq, session = session, ""
	}
	var err error
	if session != "" {
		if arg.session, err = strconv.ParseUint(session, 10, 64); err != nil {
			return leafArg{}, fmt.Errorf("leaf %q session: %w", s, err)
		}
	}
	if arg.seq, err = strconv.ParseUint(seq, 10, 64); err != nil {
		return leafArg{}, fmt.Errorf("leaf %q seq: %w", s, err)
	}
	return arg, nil
}

func newDigestCmd(vip *viper.Viper) *cobra.Command {
	var from string
	c := &cobra.Command{
		Use:   "digest [name=[session:]seq ...]",
		Short: "Print the root digest of a state",
		Long: "Builds a state from the given producers and, optionally, a snapshot " +
			"and prints its root digest and sync request name.",
		RunE: func(c *cobra.Command, args []string) error {
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
			l, err := logic.New(conf.Sync.Prefix, nil, nil, opts...)
			if err != nil {
				return err
			}
			defer l.Stop()
			if from != "" {
				diff, err := snapshot.Read(from, l.Registry(), nil)
				if err != nil {
					return err
				}
				if err := l.Restore(diff); err != nil {
					return err
				}
			}
			for _, a := range args {
				leaf, err := parseLeafArg(a)
				if err != nil {
					return err
				}
				if err := l.AddLocalNames(leaf.name, leaf.session, leaf.seq); err != nil {
					return err
				}
			}
			out := c.OutOrStdout()
			fmt.Fprintln(out, l.RootDigest())
			fmt.Fprintln(out, l.SyncPrefix(l.State().Digest()))
			return nil
		},
	}
	c.Flags().StringVar(&from, "from", "", "start from the state saved in this snapshot")
	return c
}
