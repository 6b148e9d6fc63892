package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/seehuhn/mt19937"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chronosync/go-chronosync/codec"
	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/logic"
	"github.com/chronosync/go-chronosync/syncstate"
)

// message is either a sync request (digest set) or the diff answering one.
type message struct {
	from    int
	key     string
	digest  *digest.Digest
	payload []byte
}

type network struct {
	logger   *zap.Logger
	replicas []*replica
}

func (n *network) send(to int, m message) {
	select {
	case n.replicas[to].inbox <- m:
	default:
		droppedMessages.Inc()
		n.logger.Debug("inbox full, message dropped", zap.Int("to", to), zap.String("key", m.key))
	}
}

type replica struct {
	id      int
	node    uuid.UUID
	logger  *zap.Logger
	net     *network
	logic   *logic.Logic
	inbox   chan message
	updates atomic.Int64

	// pending maps keys of requests waiting in the logic to the requester.
	pending sync.Map
}

var (
	_ logic.Handler   = (*replica)(nil)
	_ logic.Responder = (*replica)(nil)
)

func newReplica(id int, net *network, logger *zap.Logger, cfg Config, opts ...logic.Opt) (*replica, error) {
	r := &replica{
		id:     id,
		node:   uuid.New(),
		logger: logger,
		net:    net,
		inbox:  make(chan message, cfg.InboxSize),
	}
	opts = append([]logic.Opt{logic.WithLogger(logger)}, opts...)
	opts = append(opts, logic.WithResponder(r))
	l, err := logic.NewWithHandler(cfg.Prefix, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("replica %d: %w", id, err)
	}
	r.logic = l
	return r, nil
}

// OnUpdate implements logic.Handler.
func (r *replica) OnUpdate(updates []logic.MissingDataInfo) {
	r.updates.Add(int64(len(updates)))
}

// OnRemove implements logic.Handler.
func (r *replica) OnRemove(prefix string) {
	r.logger.Debug("producer removed", zap.String("prefix", prefix))
}

// Respond implements logic.Responder.
func (r *replica) Respond(key string, diff *syncstate.DiffState) {
	from, ok := r.pending.LoadAndDelete(key)
	if !ok {
		return
	}
	r.reply(from.(int), key, diff)
}

func (r *replica) reply(to int, key string, diff *syncstate.DiffState) {
	if diff.Len() == 0 {
		return
	}
	buf, err := codec.Encode(diff.ToWire())
	if err != nil {
		r.logger.Error("failed to encode diff", zap.Error(err))
		return
	}
	r.net.send(to, message{from: r.id, key: key, payload: buf})
}

func (r *replica) producerName(j int) string {
	return fmt.Sprintf("/sim/%s/p%d", r.node, j)
}

// produce publishes cfg.Updates sequence numbers for each of cfg.Producers
// producers, picking the next producer at random.
func (r *replica) produce(ctx context.Context, limiter *rate.Limiter, cfg Config) error {
	mt := mt19937.New()
	mt.Seed(int64(cfg.Seed) + int64(r.id))
	rng := rand.New(mt)
	seqs := make([]uint64, cfg.Producers)
	active := make([]int, cfg.Producers)
	for j := range active {
		active[j] = j
	}
	session := uint64(time.Now().Unix())
	for len(active) > 0 {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}
		k := rng.Intn(len(active))
		j := active[k]
		seqs[j]++
		if err := r.logic.AddLocalNames(r.producerName(j), session, seqs[j]); err != nil {
			return err
		}
		if seqs[j] >= uint64(cfg.Updates) {
			active = append(active[:k], active[k+1:]...)
		}
	}
	return nil
}

// run sends the root digest to the other replicas every interval and handles
// incoming messages until ctx is done.
func (r *replica) run(ctx context.Context, clock clockwork.Clock, interval time.Duration) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	r.requestSync()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.prunePending()
			r.requestSync()
		case m := <-r.inbox:
			if err := r.handle(m); err != nil {
				r.logger.Warn("failed to handle message", zap.String("key", m.key), zap.Error(err))
			}
		}
	}
}

func (r *replica) requestSync() {
	root := r.logic.State().Digest()
	key := r.logic.SyncPrefix(root) + "/" + r.node.String()
	for to := range r.net.replicas {
		if to != r.id {
			r.net.send(to, message{from: r.id, key: key, digest: root})
		}
	}
}

func (r *replica) handle(m message) error {
	if m.digest != nil {
		r.pending.Store(m.key, m.from)
		diff, found := r.logic.ProcessSyncRequest(m.key, m.digest)
		if found {
			r.pending.Delete(m.key)
			r.reply(m.from, m.key, diff)
		}
		return nil
	}
	var w syncstate.WireDiff
	if err := codec.Decode(m.payload, &w); err != nil {
		return err
	}
	diff, err := r.logic.DecodeDiff(&w)
	if err != nil {
		return err
	}
	return r.logic.ApplyDiff(diff)
}

// prunePending forgets requests that expired from the logic's table.
func (r *replica) prunePending() {
	r.pending.Range(func(key, _ any) bool {
		if !r.logic.Interests().Has(key.(string)) {
			r.pending.Delete(key)
		}
		return true
	})
}
