// Package names interns hierarchical producer names so that every sync state
// in the process shares one record per distinct name.
package names

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chronosync/go-chronosync/digest"
)

// Policy decides when interned records may be dropped from a Registry.
type Policy uint8

const (
	// KeepForever never drops a record. Repeated lookups of a name always
	// return the same *NameInfo.
	KeepForever Policy = iota
	// EvictUnreferenced drops a record once its last reference is released.
	EvictUnreferenced
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case KeepForever:
		return "keep-forever"
	case EvictUnreferenced:
		return "evict-unreferenced"
	default:
		return "unknown"
	}
}

// ParsePolicy is the inverse of Policy.String. The empty string selects
// KeepForever.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "keep-forever":
		return KeepForever, nil
	case "evict-unreferenced":
		return EvictUnreferenced, nil
	default:
		return 0, fmt.Errorf("unknown name policy %q", s)
	}
}

// IDSource hands out monotonically increasing ids. It may be shared by
// several registries that need a common id space.
type IDSource struct {
	next atomic.Uint64
}

// Next returns the next id. The first id is 0.
func (s *IDSource) Next() uint64 {
	return s.next.Add(1) - 1
}

// NameInfo is the interned record for a name. It is read-only after creation,
// except for the reference count owned by the registry.
type NameInfo struct {
	// ID is assigned in first-seen order. It is a lookup key only and plays
	// no role in equality or ordering.
	ID     uint64
	name   Name
	str    string
	digest *digest.Digest
	refs   int
}

func newNameInfo(id uint64, name Name, algo digest.Algorithm) *NameInfo {
	d := digest.New(digest.WithAlgorithm(algo))
	for _, c := range name.comps {
		sub := digest.New(digest.WithAlgorithm(algo))
		// appends to fresh digests can't fail
		_ = sub.AppendString(c)
		sub.Finalize()
		_ = d.AppendDigest(sub)
	}
	d.Finalize()
	return &NameInfo{
		ID:     id,
		name:   name,
		str:    name.String(),
		digest: d,
	}
}

// Name returns the interned name.
func (i *NameInfo) Name() Name {
	return i.name
}

// String returns the cached URI form of the name.
func (i *NameInfo) String() string {
	return i.str
}

// Digest returns the finalized digest of the name.
func (i *NameInfo) Digest() *digest.Digest {
	return i.digest
}

// Equal compares the underlying names.
func (i *NameInfo) Equal(other *NameInfo) bool {
	if i == other {
		return true
	}
	if i == nil || other == nil {
		return false
	}
	return i.name.Equal(other.name)
}

// Compare orders records by their names.
func (i *NameInfo) Compare(other *NameInfo) int {
	return i.name.Compare(other.name)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (i *NameInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("id", i.ID)
	enc.AddString("name", i.str)
	return nil
}

// Opt configures a Registry.
type Opt func(*Registry)

// WithPolicy sets the eviction policy.
func WithPolicy(p Policy) Opt {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithIDSource makes the registry draw ids from a shared source.
func WithIDSource(s *IDSource) Opt {
	return func(r *Registry) {
		r.ids = s
	}
}

// WithDigestAlgorithm sets the algorithm of the cached name digests.
func WithDigestAlgorithm(a digest.Algorithm) Opt {
	return func(r *Registry) {
		r.algo = a
	}
}

// WithLogger specifies the logger for the Registry.
func WithLogger(logger *zap.Logger) Opt {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry is a get-or-insert cache of NameInfo records keyed by structural
// name equality.
type Registry struct {
	logger *zap.Logger
	policy Policy
	ids    *IDSource
	algo   digest.Algorithm

	mu    sync.Mutex
	names map[string]*NameInfo
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Opt) *Registry {
	r := &Registry{
		logger: zap.NewNop(),
		policy: KeepForever,
		names:  make(map[string]*NameInfo),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ids == nil {
		r.ids = &IDSource{}
	}
	return r
}

// Policy returns the eviction policy of the registry.
func (r *Registry) Policy() Policy {
	return r.policy
}

// FindOrCreate returns the record for name, creating it if the name was not
// seen before. Concurrent calls for the same new name all get one record.
// Under EvictUnreferenced the returned record may be evicted by a concurrent
// Release or Prune before it is retained; use Acquire when the record is
// going to be stored.
func (r *Registry) FindOrCreate(name Name) *NameInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(name)
}

// Acquire is like FindOrCreate but also retains the record in the same
// critical section, so it can't be evicted until the caller releases it.
func (r *Registry) Acquire(name Name) *NameInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.findOrCreateLocked(name)
	info.refs++
	return info
}

// AcquireString parses uri and acquires the resulting name.
func (r *Registry) AcquireString(uri string) (*NameInfo, error) {
	name, err := ParseName(uri)
	if err != nil {
		return nil, err
	}
	return r.Acquire(name), nil
}

func (r *Registry) findOrCreateLocked(name Name) *NameInfo {
	key := name.Key()
	if info, found := r.names[key]; found {
		return info
	}
	info := newNameInfo(r.ids.Next(), name, r.algo)
	r.names[key] = info
	internedNames.Inc()
	r.logger.Debug("interned name", zap.Object("info", info))
	return info
}

// FindOrCreateString parses uri and interns the resulting name.
func (r *Registry) FindOrCreateString(uri string) (*NameInfo, error) {
	name, err := ParseName(uri)
	if err != nil {
		return nil, err
	}
	return r.FindOrCreate(name), nil
}

// Lookup returns the record for name without creating one.
func (r *Registry) Lookup(name Name) (*NameInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, found := r.names[name.Key()]
	return info, found
}

// Len returns the number of interned records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Retain records one more holder of info.
func (r *Registry) Retain(info *NameInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.refs++
}

// Release drops one holder of info. Under EvictUnreferenced the record is
// removed when no holders remain, so a later FindOrCreate gets a new record.
func (r *Registry) Release(info *NameInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info.refs > 0 {
		info.refs--
	}
	if info.refs == 0 && r.policy == EvictUnreferenced {
		r.evictLocked(info)
	}
}

// Prune removes every unreferenced record under EvictUnreferenced and
// returns how many were removed. It does nothing under KeepForever.
func (r *Registry) Prune() int {
	if r.policy != EvictUnreferenced {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, info := range r.names {
		if info.refs == 0 && r.evictLocked(info) {
			n++
		}
	}
	return n
}

func (r *Registry) evictLocked(info *NameInfo) bool {
	key := info.name.Key()
	if cur, found := r.names[key]; !found || cur != info {
		return false
	}
	delete(r.names, key)
	internedNames.Dec()
	evictedNames.Inc()
	r.logger.Debug("evicted name", zap.Object("info", info))
	return true
}
