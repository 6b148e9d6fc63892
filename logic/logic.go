// Package logic is the local half of the sync protocol: it owns the replica's
// state, interns producer names, keeps a short log of recent diffs and
// tracks the sync requests waiting for the state to change.
package logic

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/interests"
	"github.com/chronosync/go-chronosync/names"
	"github.com/chronosync/go-chronosync/syncstate"
)

const (
	// DefaultInterestLifetime is how long a pending sync request is kept.
	DefaultInterestLifetime = 4 * time.Second
	// DefaultLogSize is the number of recent diffs kept for answering
	// requests that carry an older digest.
	DefaultLogSize = 100
)

// MissingDataInfo describes a producer whose state advanced.
type MissingDataInfo struct {
	Prefix string
	// High is the new sequence number.
	High syncstate.SeqNo
	// Low is the previous sequence number, invalid for new producers.
	Low syncstate.SeqNo
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m MissingDataInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("prefix", m.Prefix)
	enc.AddObject("high", m.High)
	enc.AddObject("low", m.Low)
	return nil
}

// UpdateCallback is invoked with producers that were inserted or advanced.
type UpdateCallback func(updates []MissingDataInfo)

// RemoveCallback is invoked with the prefix of a retracted producer.
type RemoveCallback func(prefix string)

type callbacks struct {
	onUpdate UpdateCallback
	onRemove RemoveCallback
}

func (c callbacks) OnUpdate(updates []MissingDataInfo) {
	if c.onUpdate != nil {
		c.onUpdate(updates)
	}
}

func (c callbacks) OnRemove(prefix string) {
	if c.onRemove != nil {
		c.onRemove(prefix)
	}
}

type nopResponder struct{}

func (nopResponder) Respond(string, *syncstate.DiffState) {}

// Opt specifies an option for a Logic.
type Opt func(*Logic)

// WithLogger specifies the logger for the Logic and its components.
func WithLogger(logger *zap.Logger) Opt {
	return func(l *Logic) {
		l.logger = logger
	}
}

// WithStateLogger sets the logger of the replica state. It defaults to the
// Logic logger.
func WithStateLogger(logger *zap.Logger) Opt {
	return func(l *Logic) {
		l.stateLogger = logger
	}
}

// WithInterestsLogger sets the logger of the pending request table.
func WithInterestsLogger(logger *zap.Logger) Opt {
	return func(l *Logic) {
		l.interestsLogger = logger
	}
}

// WithClock sets the clock for the state and the interest table.
func WithClock(clock clockwork.Clock) Opt {
	return func(l *Logic) {
		l.clock = clock
	}
}

// WithRegistry shares a name registry between several Logic instances.
func WithRegistry(reg *names.Registry) Opt {
	return func(l *Logic) {
		l.registry = reg
	}
}

// WithDigestAlgorithm sets the digest algorithm of the state.
func WithDigestAlgorithm(algo digest.Algorithm) Opt {
	return func(l *Logic) {
		l.algo = algo
	}
}

// WithOrder sets the sequence number order.
func WithOrder(order syncstate.Order) Opt {
	return func(l *Logic) {
		l.order = order
	}
}

// WithInterestLifetime sets how long pending sync requests are kept.
func WithInterestLifetime(d time.Duration) Opt {
	return func(l *Logic) {
		l.interestLifetime = d
	}
}

// WithCheckPeriod sets the interval between interest expiry sweeps.
func WithCheckPeriod(d time.Duration) Opt {
	return func(l *Logic) {
		l.checkPeriod = d
	}
}

// WithLogSize sets how many recent diffs are kept.
func WithLogSize(n int) Opt {
	return func(l *Logic) {
		l.logSize = n
	}
}

// WithResponder sets the responder for pending sync requests.
func WithResponder(r Responder) Opt {
	return func(l *Logic) {
		l.responder = r
	}
}

var errNilDiff = errors.New("nil diff")

type logEntry struct {
	diff *syncstate.DiffState
	next string
}

// Logic binds the state of one replica to the sync prefix it is published
// under. All methods are safe for concurrent use.
type Logic struct {
	logger           *zap.Logger
	stateLogger      *zap.Logger
	interestsLogger  *zap.Logger
	clock            clockwork.Clock
	prefix           names.Name
	registry         *names.Registry
	algo             digest.Algorithm
	order            syncstate.Order
	interestLifetime time.Duration
	checkPeriod      time.Duration
	logSize          int
	handler          Handler
	responder        Responder

	state     *syncstate.FullState
	interests *interests.Table

	mu  sync.Mutex
	log *lru.Cache[string, logEntry]
}

// New creates a Logic for the sync prefix with callback functions.
// Either callback may be nil.
func New(prefix string, onUpdate UpdateCallback, onRemove RemoveCallback, opts ...Opt) (*Logic, error) {
	return NewWithHandler(prefix, callbacks{onUpdate: onUpdate, onRemove: onRemove}, opts...)
}

// NewWithHandler creates a Logic for the sync prefix that reports to h.
func NewWithHandler(prefix string, h Handler, opts ...Opt) (*Logic, error) {
	p, err := names.ParseName(prefix)
	if err != nil {
		return nil, fmt.Errorf("sync prefix: %w", err)
	}
	l := &Logic{
		logger:           zap.NewNop(),
		clock:            clockwork.NewRealClock(),
		prefix:           p,
		order:            syncstate.SessionThenSeq,
		interestLifetime: DefaultInterestLifetime,
		checkPeriod:      interests.DefaultCheckPeriod,
		logSize:          DefaultLogSize,
		handler:          h,
		responder:        nopResponder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.stateLogger == nil {
		l.stateLogger = l.logger.Named("state")
	}
	if l.interestsLogger == nil {
		l.interestsLogger = l.logger.Named("interests")
	}
	if l.registry == nil {
		l.registry = names.NewRegistry(
			names.WithDigestAlgorithm(l.algo),
			names.WithLogger(l.logger.Named("names")))
	}
	l.log, err = lru.New[string, logEntry](l.logSize)
	if err != nil {
		return nil, fmt.Errorf("digest log: %w", err)
	}
	l.state = syncstate.NewFullState(
		syncstate.WithClock(l.clock),
		syncstate.WithOrder(l.order),
		syncstate.WithDigestAlgorithm(l.algo),
		syncstate.WithTracker(l.registry),
		syncstate.WithLogger(l.stateLogger))
	l.interests = interests.New(l.interestLifetime,
		interests.WithClock(l.clock),
		interests.WithCheckPeriod(l.checkPeriod),
		interests.WithLogger(l.interestsLogger))
	return l, nil
}

// Stop stops the interest expiry sweep that runs from construction.
func (l *Logic) Stop() {
	l.interests.Stop()
}

// Prefix returns the sync prefix.
func (l *Logic) Prefix() string {
	return l.prefix.String()
}

// State returns the replica state.
func (l *Logic) State() *syncstate.FullState {
	return l.state
}

// Interests returns the table of pending sync requests.
func (l *Logic) Interests() *interests.Table {
	return l.interests
}

// Registry returns the name registry.
func (l *Logic) Registry() *names.Registry {
	return l.registry
}

// RootDigest returns the hex digest of the current state.
func (l *Logic) RootDigest() string {
	return l.state.Digest().String()
}

// SyncPrefix returns the name of a sync request for the given digest.
// A nil digest stands for the empty state.
func (l *Logic) SyncPrefix(d *digest.Digest) string {
	if d == nil {
		d = digest.Empty()
	}
	return strings.TrimSuffix(l.prefix.String(), "/") + "/" + d.String()
}

// AddLocalNames records that the local producer prefix reached seq within
// session. Stale sequence numbers are ignored.
func (l *Logic) AddLocalNames(prefix string, session, seq uint64) error {
	info, err := l.registry.AcquireString(prefix)
	if err != nil {
		return err
	}
	defer l.registry.Release(info)
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.state.Digest()
	inserted, updated, _ := l.state.Update(info, syncstate.NewSeqNo(session, seq))
	if !inserted && !updated {
		l.logger.Debug("ignoring stale local update",
			zap.String("prefix", prefix), zap.Uint64("session", session), zap.Uint64("seq", seq))
		return nil
	}
	diff := syncstate.NewDiffState(l.order)
	diff.Update(info, syncstate.NewSeqNo(session, seq))
	l.recordLocked(old, diff)
	return nil
}

// Remove retracts the local producer prefix.
func (l *Logic) Remove(prefix string) error {
	name, err := names.ParseName(prefix)
	if err != nil {
		return err
	}
	info, found := l.registry.Lookup(name)
	if !found {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.state.Digest()
	if !l.state.Remove(info) {
		return nil
	}
	diff := syncstate.NewDiffState(l.order)
	diff.Remove(info)
	l.recordLocked(old, diff)
	return nil
}

// ApplyDiff merges a diff received from another replica and reports the
// producers that changed to the handler. The name references of a decoded
// diff are released afterwards.
func (l *Logic) ApplyDiff(diff *syncstate.DiffState) error {
	if diff == nil {
		return errNilDiff
	}
	updates, removed := l.apply(diff)
	remoteUpdates.Add(float64(len(updates)))
	remoteRemovals.Add(float64(len(removed)))
	if len(updates) > 0 {
		l.logger.Debug("remote updates", zap.Objects("updates", updates))
		l.handler.OnUpdate(updates)
	}
	for _, prefix := range removed {
		l.handler.OnRemove(prefix)
	}
	return nil
}

// Restore merges a previously saved state without notifying the handler.
// Like ApplyDiff it releases the name references of a decoded diff.
func (l *Logic) Restore(diff *syncstate.DiffState) error {
	if diff == nil {
		return errNilDiff
	}
	updates, removed := l.apply(diff)
	l.logger.Info("state restored",
		zap.Int("updated", len(updates)),
		zap.Int("removed", len(removed)),
		zap.String("root", l.RootDigest()))
	return nil
}

func (l *Logic) apply(diff *syncstate.DiffState) (updates []MissingDataInfo, removed []string) {
	defer l.prune()
	defer diff.Release()
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.state.Digest()
	applied := syncstate.NewDiffState(l.order)
	for _, leaf := range diff.DiffLeaves() {
		info := leaf.Info()
		switch leaf.Op() {
		case syncstate.OpRemove:
			if l.state.Remove(info) {
				applied.Remove(info)
				removed = append(removed, info.String())
			}
		default:
			inserted, updated, prev := l.state.Update(info, leaf.Seq())
			if inserted || updated {
				applied.Update(info, leaf.Seq())
				updates = append(updates, MissingDataInfo{
					Prefix: info.String(),
					High:   leaf.Seq(),
					Low:    prev,
				})
			}
		}
	}
	if applied.Len() > 0 {
		l.recordLocked(old, applied)
	}
	return updates, removed
}

// DecodeDiff builds a diff from its wire form, acquiring names in the
// registry of this Logic. A diff that is not passed to ApplyDiff or Restore
// must be released by the caller.
func (l *Logic) DecodeDiff(m *syncstate.WireDiff) (*syncstate.DiffState, error) {
	return syncstate.DiffFromWire(l.registry, m, l.order)
}

// prune drops the names that no state holds any more, such as producers
// that only ever appeared in stale or removed leaves.
func (l *Logic) prune() {
	if n := l.registry.Prune(); n > 0 {
		l.logger.Debug("pruned unreferenced names", zap.Int("count", n))
	}
}

// recordLocked logs the diff that moved the state away from old and answers
// the pending requests.
func (l *Logic) recordLocked(old *digest.Digest, diff *syncstate.DiffState) {
	root := l.state.Digest()
	if old.String() == root.String() {
		return
	}
	l.log.Add(old.String(), logEntry{diff: diff, next: root.String()})
	l.logger.Debug("state changed",
		zap.Stringer("from", old),
		zap.Stringer("to", root),
		zap.Array("diff", diff))
	l.satisfyPendingLocked()
}

func (l *Logic) satisfyPendingLocked() {
	for {
		e, err := l.interests.Pop()
		if err != nil {
			return
		}
		diff, found := l.diffSinceLocked(e.Digest.String())
		if !found {
			diff = l.fullDiffLocked()
		}
		answeredRequests.Inc()
		l.responder.Respond(e.Key, diff)
	}
}

// DiffSince returns the changes that lead from the state with digest d to
// the current one. It reports false if d is not in the recent log.
func (l *Logic) DiffSince(d string) (*syncstate.DiffState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	diff, found := l.diffSinceLocked(d)
	if found {
		diffLogHit.Inc()
	} else {
		diffLogMiss.Inc()
	}
	return diff, found
}

func (l *Logic) diffSinceLocked(d string) (*syncstate.DiffState, bool) {
	root := l.state.Digest().String()
	merged := syncstate.NewDiffState(l.order)
	cur := d
	for range l.log.Len() + 1 {
		if cur == root {
			return merged, true
		}
		entry, found := l.log.Peek(cur)
		if !found {
			return nil, false
		}
		merged.Merge(entry.diff)
		cur = entry.next
	}
	return nil, false
}

// FullDiff returns the whole state as a diff of updates.
func (l *Logic) FullDiff() *syncstate.DiffState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fullDiffLocked()
}

func (l *Logic) fullDiffLocked() *syncstate.DiffState {
	diff := syncstate.NewDiffState(l.order)
	for _, leaf := range l.state.Leaves() {
		diff.Update(leaf.Info(), leaf.Seq())
	}
	return diff
}

// ProcessSyncRequest handles a sync request named key that carries the
// digest of the requester's state. It returns the diff to answer with when
// one is available right away. Otherwise the request is recorded as pending
// and answered through the Responder once the local state changes.
//
// Requests for the current digest simply wait. A request for an unknown
// digest is kept as unresolved; if the requester retransmits it under the
// same key, the whole state is returned so that diverged replicas recover.
//
// A nil digest is treated as the empty state.
func (l *Logic) ProcessSyncRequest(key string, d *digest.Digest) (*syncstate.DiffState, bool) {
	if d == nil {
		d = digest.Empty()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	root := l.state.Digest()
	if d.String() == root.String() {
		l.interests.Insert(d, key, false)
		return nil, false
	}
	if diff, found := l.diffSinceLocked(d.String()); found {
		diffLogHit.Inc()
		return diff, true
	}
	diffLogMiss.Inc()
	if d.IsEmptyState() {
		return l.fullDiffLocked(), true
	}
	if l.interests.Insert(d, key, true) {
		l.interests.Remove(key)
		recoveries.Inc()
		l.logger.Debug("recovering requester with unknown digest",
			zap.String("key", key), zap.Stringer("digest", d))
		return l.fullDiffLocked(), true
	}
	return nil, false
}
