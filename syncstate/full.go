package syncstate

import (
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/names"
)

// FullStateOpt specifies an option for a FullState.
type FullStateOpt func(*FullState)

// WithClock sets the clock used for the last update timestamp.
func WithClock(clock clockwork.Clock) FullStateOpt {
	return func(s *FullState) {
		s.clock = clock
	}
}

// WithOrder sets the predicate that decides whether a sequence number is newer.
func WithOrder(order Order) FullStateOpt {
	return func(s *FullState) {
		s.order = order
	}
}

// WithDigestAlgorithm sets the algorithm of leaf and aggregate digests.
// It must match the algorithm of the name registry for digests to agree
// across replicas.
func WithDigestAlgorithm(algo digest.Algorithm) FullStateOpt {
	return func(s *FullState) {
		s.algo = algo
	}
}

// WithTracker makes the state retain names while it holds leaves for them.
func WithTracker(t Tracker) FullStateOpt {
	return func(s *FullState) {
		s.tracker = t
	}
}

// WithLogger specifies the logger for the FullState.
func WithLogger(logger *zap.Logger) FullStateOpt {
	return func(s *FullState) {
		s.logger = logger
	}
}

// FullState is the cumulative sync state. All methods are safe for
// concurrent use.
type FullState struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	order   Order
	algo    digest.Algorithm
	tracker Tracker

	mu          sync.Mutex
	leaves      map[string]*FullLeaf
	digest      *digest.Digest
	lastUpdated time.Time
}

var _ State = (*FullState)(nil)

// NewFullState creates an empty state.
func NewFullState(opts ...FullStateOpt) *FullState {
	s := &FullState{
		logger:  zap.NewNop(),
		clock:   clockwork.NewRealClock(),
		order:   SessionThenSeq,
		algo:    digest.SHA256,
		tracker: nopTracker{},
		leaves:  make(map[string]*FullLeaf),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUpdated = s.clock.Now()
	return s
}

// Update implements State.
func (s *FullState) Update(info *names.NameInfo, seq SeqNo) (inserted, updated bool, prev SeqNo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := info.Name().Key()
	leaf, found := s.leaves[key]
	if !found {
		s.leaves[key] = NewFullLeaf(info, seq, s.algo)
		s.tracker.Retain(info)
		s.touchLocked()
		stateUpdates.WithLabelValues(outcomeInserted).Inc()
		s.logger.Debug("leaf inserted", zap.String("name", info.String()), zap.Object("seq", seq))
		return true, false, InvalidSeqNo
	}
	if !s.order(leaf.seq, seq) {
		stateUpdates.WithLabelValues(outcomeStale).Inc()
		return false, false, InvalidSeqNo
	}
	prev = leaf.seq
	leaf.setSeq(seq)
	s.touchLocked()
	stateUpdates.WithLabelValues(outcomeUpdated).Inc()
	s.logger.Debug("leaf updated",
		zap.String("name", info.String()),
		zap.Object("prev", prev),
		zap.Object("seq", seq))
	return false, true, prev
}

// Remove implements State.
func (s *FullState) Remove(info *names.NameInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := info.Name().Key()
	leaf, found := s.leaves[key]
	if !found {
		return false
	}
	delete(s.leaves, key)
	s.tracker.Release(leaf.info)
	s.touchLocked()
	stateRemovals.Inc()
	s.logger.Debug("leaf removed", zap.String("name", info.String()))
	return true
}

func (s *FullState) touchLocked() {
	s.digest = nil
	s.lastUpdated = s.clock.Now()
}

// Get returns the sequence number stored for info.
func (s *FullState) Get(info *names.NameInfo) (SeqNo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leaf, found := s.leaves[info.Name().Key()]
	if !found {
		return InvalidSeqNo, false
	}
	return leaf.seq, true
}

// Len implements State.
func (s *FullState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leaves)
}

// Leaves implements State.
func (s *FullState) Leaves() []Leaf {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := make([]Leaf, 0, len(s.leaves))
	for _, l := range s.leaves {
		r = append(r, l.clone())
	}
	slices.SortFunc(r, func(a, b Leaf) int {
		return a.Info().Compare(b.Info())
	})
	return r
}

// Digest returns the aggregate digest of the state. The result is finalized
// and must not be modified. It is recomputed only after the state changes.
func (s *FullState) Digest() *digest.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.digest == nil {
		s.digest = s.computeDigestLocked()
	}
	return s.digest
}

func (s *FullState) computeDigestLocked() *digest.Digest {
	if len(s.leaves) == 0 {
		return digest.Empty()
	}
	ordered := make([]*FullLeaf, 0, len(s.leaves))
	for _, l := range s.leaves {
		ordered = append(ordered, l)
	}
	// Map iteration order is random; sorting by leaf digest makes the
	// aggregate independent of the order updates arrived in.
	slices.SortFunc(ordered, func(a, b *FullLeaf) int {
		c, err := a.digest.Compare(b.digest)
		if err != nil {
			panic("BUG: unfinalized leaf digest")
		}
		return c
	})
	d := digest.New(digest.WithAlgorithm(s.algo))
	for _, l := range ordered {
		if err := d.AppendDigest(l.digest); err != nil {
			panic("BUG: append leaf digest: " + err.Error())
		}
	}
	d.Finalize()
	digestRecomputations.Inc()
	return d
}

// TimeSinceLastUpdate returns the time elapsed since the last successful
// update or removal, or since creation if there was none.
func (s *FullState) TimeSinceLastUpdate() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Since(s.lastUpdated)
}
