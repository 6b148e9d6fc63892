// Package sim runs several replicas in one process and lets them reconcile
// over a lossy in-memory network.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chronosync/go-chronosync/logic"
)

// Config describes a simulation.
type Config struct {
	// Prefix is the sync prefix shared by all replicas.
	Prefix string
	// Replicas is the number of replicas.
	Replicas int
	// Producers is the number of producers published by every replica.
	Producers int
	// Updates is the number of sequence numbers every producer publishes.
	Updates int
	// Seed seeds the choice of the producer that publishes next.
	Seed uint64
	// Rate limits the publications of a replica per second. Zero means
	// no limit.
	Rate float64
	// SyncInterval is how often a replica sends its root digest to the
	// others.
	SyncInterval time.Duration
	// InboxSize bounds the messages queued for a replica. Messages that do
	// not fit are dropped.
	InboxSize int
	// Timeout bounds the whole run.
	Timeout time.Duration
}

// DefaultConfig returns a small simulation that converges within a second.
func DefaultConfig() Config {
	return Config{
		Prefix:       "/chronosync/sim",
		Replicas:     2,
		Producers:    2,
		Updates:      10,
		Seed:         1,
		SyncInterval: 50 * time.Millisecond,
		InboxSize:    64,
		Timeout:      30 * time.Second,
	}
}

// Result summarizes a finished simulation.
type Result struct {
	// Roots holds the final root digest of every replica.
	Roots []string
	// Converged reports whether all replicas ended with the same root.
	Converged bool
	// Updates is the number of remote producer updates reported to each
	// replica.
	Updates []int64
	// Replicas gives access to the final state of every replica.
	Replicas []*logic.Logic
}

// ErrNotConverged is returned when replicas still disagree at the timeout.
var ErrNotConverged = errors.New("replicas did not converge")

// Run publishes the configured updates on every replica and waits until all
// replicas agree on the root digest. The opts are applied to every replica.
func Run(ctx context.Context, logger *zap.Logger, cfg Config, opts ...logic.Opt) (*Result, error) {
	if cfg.Replicas < 1 || cfg.Producers < 0 || cfg.Updates < 0 {
		return nil, fmt.Errorf("invalid simulation size %d/%d/%d", cfg.Replicas, cfg.Producers, cfg.Updates)
	}
	clock := clockwork.NewRealClock()
	net := &network{logger: logger}
	for i := range cfg.Replicas {
		r, err := newReplica(i, net, logger.Named(fmt.Sprintf("replica-%d", i)), cfg, opts...)
		if err != nil {
			return nil, err
		}
		defer r.logic.Stop()
		net.replicas = append(net.replicas, r)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	loopCtx, stopLoops := context.WithCancel(ctx)
	var loops errgroup.Group
	for _, r := range net.replicas {
		loops.Go(func() error {
			return r.run(loopCtx, clock, cfg.SyncInterval)
		})
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	producers, pctx := errgroup.WithContext(ctx)
	for _, r := range net.replicas {
		limiter := rate.NewLimiter(limit, 1)
		producers.Go(func() error {
			return r.produce(pctx, limiter, cfg)
		})
	}
	err := producers.Wait()
	converged := false
	if err == nil {
		converged = waitConverged(ctx, clock, net.replicas)
	}
	stopLoops()
	if lerr := loops.Wait(); lerr != nil && err == nil {
		err = lerr
	}

	res := &Result{Converged: converged}
	for _, r := range net.replicas {
		res.Roots = append(res.Roots, r.logic.RootDigest())
		res.Updates = append(res.Updates, r.updates.Load())
		res.Replicas = append(res.Replicas, r.logic)
	}
	logger.Info("simulation finished",
		zap.Bool("converged", converged),
		zap.Strings("roots", res.Roots))
	if err != nil {
		return res, err
	}
	if !converged {
		return res, ErrNotConverged
	}
	return res, nil
}

func waitConverged(ctx context.Context, clock clockwork.Clock, replicas []*replica) bool {
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if sameRoots(replicas) {
			return true
		}
		select {
		case <-ctx.Done():
			return sameRoots(replicas)
		case <-ticker.Chan():
		}
	}
}

func sameRoots(replicas []*replica) bool {
	root := replicas[0].logic.RootDigest()
	for _, r := range replicas[1:] {
		if r.logic.RootDigest() != root {
			return false
		}
	}
	return true
}
