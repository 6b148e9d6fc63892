// Package interests tracks outstanding sync requests (interests) that wait for
// a state matching an expected digest.
package interests

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/chronosync/go-chronosync/digest"
)

// ErrEmptyTable is returned by Pop when the table holds no entries.
var ErrEmptyTable = errors.New("interest table is empty")

// DefaultCheckPeriod is the default interval between expiry sweeps.
const DefaultCheckPeriod = 4 * time.Second

// Entry is a pending request.
type Entry struct {
	// Digest is the state digest the requester expects to be answered for.
	Digest *digest.Digest
	// Key identifies the request, e.g. the full request name.
	Key string
	// Arrival is when the entry was inserted.
	Arrival time.Time
	// Unresolved marks requests for a digest the local replica doesn't know.
	Unresolved bool
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (e *Entry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("key", e.Key)
	enc.AddString("digest", e.Digest.ShortString())
	enc.AddTime("arrival", e.Arrival)
	enc.AddBool("unresolved", e.Unresolved)
	return nil
}

// Opt specifies an option for a Table.
type Opt func(*Table)

// WithCheckPeriod sets the interval between expiry sweeps.
func WithCheckPeriod(d time.Duration) Opt {
	return func(t *Table) {
		t.checkPeriod = d
	}
}

// WithClock sets the clock used for arrival times and sweeps.
func WithClock(clock clockwork.Clock) Opt {
	return func(t *Table) {
		t.clock = clock
	}
}

// WithLogger specifies the logger for the Table.
func WithLogger(logger *zap.Logger) Opt {
	return func(t *Table) {
		t.logger = logger
	}
}

// Table holds pending requests indexed by key and by expected digest and
// ordered by arrival. All methods are safe for concurrent use.
type Table struct {
	logger      *zap.Logger
	clock       clockwork.Clock
	lifetime    time.Duration
	checkPeriod time.Duration

	mu       sync.Mutex
	arrivals *list.List
	byKey    map[string]*list.Element
	byDigest map[string]map[string]struct{}

	stop   sync.Once
	cancel context.CancelFunc
	eg     errgroup.Group
}

// New creates a table whose entries expire lifetime after their arrival.
// The expiry sweep starts right away and runs until Stop.
func New(lifetime time.Duration, opts ...Opt) *Table {
	t := &Table{
		logger:      zap.NewNop(),
		clock:       clockwork.NewRealClock(),
		lifetime:    lifetime,
		checkPeriod: DefaultCheckPeriod,
		arrivals:    list.New(),
		byKey:       make(map[string]*list.Element),
		byDigest:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	var ctx context.Context
	ctx, t.cancel = context.WithCancel(context.Background())
	t.eg.Go(func() error { return t.run(ctx) })
	return t
}

// Insert adds a request expecting d under key, stamped with the current time.
// An existing entry with the same key is replaced and Insert returns true,
// which callers may treat as a retransmission. A nil d stands for the empty
// state.
func (t *Table) Insert(d *digest.Digest, key string, unresolved bool) bool {
	if d == nil {
		d = digest.Empty()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, existed := t.byKey[key]
	if existed {
		t.removeKeyLocked(key)
		replacedEntries.Inc()
	}
	e := &Entry{
		Digest:     d,
		Key:        key,
		Arrival:    t.clock.Now(),
		Unresolved: unresolved,
	}
	t.byKey[key] = t.arrivals.PushBack(e)
	dk := d.String()
	keys, found := t.byDigest[dk]
	if !found {
		keys = make(map[string]struct{})
		t.byDigest[dk] = keys
	}
	keys[key] = struct{}{}
	liveEntries.Inc()
	t.logger.Debug("interest inserted", zap.Object("entry", e), zap.Bool("replaced", existed))
	return existed
}

// Pop removes and returns the entry that arrived first.
func (t *Table) Pop() (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	front := t.arrivals.Front()
	if front == nil {
		return Entry{}, ErrEmptyTable
	}
	e := front.Value.(*Entry)
	t.removeKeyLocked(e.Key)
	return *e, nil
}

// Remove drops the entry with the given key and reports whether it existed.
func (t *Table) Remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeKeyLocked(key)
}

// RemoveDigest drops every entry expecting d and reports whether there was
// any.
func (t *Table) RemoveDigest(d *digest.Digest) bool {
	if d == nil {
		d = digest.Empty()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	keys, found := t.byDigest[d.String()]
	if !found {
		return false
	}
	for key := range keys {
		t.removeKeyLocked(key)
	}
	return true
}

// Has reports whether an entry with the given key is pending.
func (t *Table) Has(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, found := t.byKey[key]
	return found
}

// Entries returns copies of the pending entries in arrival order.
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := make([]Entry, 0, t.arrivals.Len())
	for el := t.arrivals.Front(); el != nil; el = el.Next() {
		r = append(r, *el.Value.(*Entry))
	}
	return r
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.arrivals.Len()
}

func (t *Table) removeKeyLocked(key string) bool {
	el, found := t.byKey[key]
	if !found {
		return false
	}
	e := t.arrivals.Remove(el).(*Entry)
	delete(t.byKey, key)
	dk := e.Digest.String()
	if keys := t.byDigest[dk]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(t.byDigest, dk)
		}
	}
	liveEntries.Dec()
	return true
}

// Expire removes the entries older than the table lifetime and returns how
// many were removed. Entries are visited in arrival order, so the sweep stops
// at the first entry that is still live.
func (t *Table) Expire() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expireLocked()
}

func (t *Table) expireLocked() int {
	cutoff := t.clock.Now().Add(-t.lifetime)
	count := 0
	for el := t.arrivals.Front(); el != nil; el = t.arrivals.Front() {
		e := el.Value.(*Entry)
		if !e.Arrival.Before(cutoff) {
			break
		}
		t.removeKeyLocked(e.Key)
		count++
	}
	expiredEntries.Add(float64(count))
	return count
}

func (t *Table) sweep() (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expiry sweep panicked: %v", r)
		}
	}()
	return t.Expire(), nil
}

// run sweeps expired entries every check period until ctx is canceled.
// A failing sweep is logged and does not stop the loop.
func (t *Table) run(ctx context.Context) error {
	ticker := t.clock.NewTicker(t.checkPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			n, err := t.sweep()
			if err != nil {
				t.logger.Error("interest expiry failed", zap.Error(err))
				continue
			}
			t.logger.Debug("expired interests", zap.Int("count", n))
		}
	}
}

// Stop stops the expiry sweep and waits for it to exit. It is safe to call
// more than once and from several goroutines.
func (t *Table) Stop() {
	t.stop.Do(func() {
		t.cancel()
		if err := t.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Error("interest table sweep terminated with an error", zap.Error(err))
		}
	})
}
