package syncstate

import (
	"go.uber.org/zap/zapcore"

	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/names"
)

// Leaf is a producer name with its latest known sequence number.
// The set of implementations is closed: *FullLeaf and *DiffLeaf.
type Leaf interface {
	zapcore.ObjectMarshaler
	Info() *names.NameInfo
	Seq() SeqNo
	// Equal reports whether other is the same kind of leaf with equal
	// contents. Leaves of different kinds are never equal.
	Equal(other Leaf) bool
	leaf()
}

// FullLeaf is a leaf of the cumulative state. It carries the digest of its
// name and sequence number.
type FullLeaf struct {
	info   *names.NameInfo
	seq    SeqNo
	digest *digest.Digest
}

var _ Leaf = (*FullLeaf)(nil)

// NewFullLeaf creates a leaf and computes its digest.
func NewFullLeaf(info *names.NameInfo, seq SeqNo, algo digest.Algorithm) *FullLeaf {
	l := &FullLeaf{info: info, seq: seq}
	l.digest = leafDigest(info, seq, algo)
	return l
}

func leafDigest(info *names.NameInfo, seq SeqNo, algo digest.Algorithm) *digest.Digest {
	d := digest.New(digest.WithAlgorithm(algo))
	// name digests are finalized and d is fresh, so appends can't fail
	_ = d.AppendDigest(info.Digest())
	_ = d.AppendUint(seq.Session)
	_ = d.AppendString("/")
	_ = d.AppendUint(seq.Seq)
	d.Finalize()
	return d
}

func (l *FullLeaf) leaf() {}

// Info returns the interned name of the leaf.
func (l *FullLeaf) Info() *names.NameInfo { return l.info }

// Seq returns the sequence number of the leaf.
func (l *FullLeaf) Seq() SeqNo { return l.seq }

// Digest returns the finalized digest of the leaf.
func (l *FullLeaf) Digest() *digest.Digest { return l.digest }

func (l *FullLeaf) setSeq(seq SeqNo) {
	l.seq = seq
	l.digest = leafDigest(l.info, seq, l.digest.Algorithm())
}

func (l *FullLeaf) clone() *FullLeaf {
	c := *l
	return &c
}

// Equal implements Leaf.
func (l *FullLeaf) Equal(other Leaf) bool {
	switch o := other.(type) {
	case *FullLeaf:
		return l.info.Equal(o.info) && l.seq == o.seq
	default:
		return false
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (l *FullLeaf) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", l.info.String())
	enc.AddObject("seq", l.seq)
	enc.AddString("digest", l.digest.ShortString())
	return nil
}

// Operation is the kind of change a DiffLeaf describes.
type Operation uint8

const (
	// OpUpdate inserts or advances the producer.
	OpUpdate Operation = iota
	// OpRemove retracts the producer.
	OpRemove
)

// String implements fmt.Stringer.
func (op Operation) String() string {
	switch op {
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// DiffLeaf is an entry of a DiffState.
type DiffLeaf struct {
	info *names.NameInfo
	seq  SeqNo
	op   Operation
}

var _ Leaf = (*DiffLeaf)(nil)

// NewDiffLeaf creates an update leaf.
func NewDiffLeaf(info *names.NameInfo, seq SeqNo) *DiffLeaf {
	return &DiffLeaf{info: info, seq: seq, op: OpUpdate}
}

// NewRemoveLeaf creates a removal leaf.
func NewRemoveLeaf(info *names.NameInfo) *DiffLeaf {
	return &DiffLeaf{info: info, op: OpRemove}
}

func (l *DiffLeaf) leaf() {}

// Info returns the interned name of the leaf.
func (l *DiffLeaf) Info() *names.NameInfo { return l.info }

// Seq returns the sequence number; it is invalid for removals.
func (l *DiffLeaf) Seq() SeqNo { return l.seq }

// Op returns the operation of the leaf.
func (l *DiffLeaf) Op() Operation { return l.op }

// Equal implements Leaf.
func (l *DiffLeaf) Equal(other Leaf) bool {
	switch o := other.(type) {
	case *DiffLeaf:
		return l.op == o.op && l.info.Equal(o.info) && l.seq == o.seq
	default:
		return false
	}
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (l *DiffLeaf) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", l.info.String())
	enc.AddString("op", l.op.String())
	if l.op == OpUpdate {
		enc.AddObject("seq", l.seq)
	}
	return nil
}
