package syncstate

import (
	"slices"

	"go.uber.org/zap/zapcore"

	"github.com/chronosync/go-chronosync/names"
)

// DiffState is an ordered set of changes, at most one per name. It is what
// replicas exchange instead of the full state. DiffState is not safe for
// concurrent use.
type DiffState struct {
	order  Order
	leaves map[string]*DiffLeaf

	tracker Tracker
	held    []*names.NameInfo
}

var _ State = (*DiffState)(nil)

// NewDiffState creates an empty diff. order decides whether an update
// supersedes a previous one for the same name; nil means SessionThenSeq.
func NewDiffState(order Order) *DiffState {
	if order == nil {
		order = SessionThenSeq
	}
	return &DiffState{
		order:  order,
		leaves: make(map[string]*DiffLeaf),
	}
}

// Update implements State. An update replaces a recorded removal.
func (d *DiffState) Update(info *names.NameInfo, seq SeqNo) (inserted, updated bool, prev SeqNo) {
	key := info.Name().Key()
	leaf, found := d.leaves[key]
	if !found {
		d.leaves[key] = NewDiffLeaf(info, seq)
		return true, false, InvalidSeqNo
	}
	if leaf.op == OpRemove {
		d.leaves[key] = NewDiffLeaf(info, seq)
		return false, true, InvalidSeqNo
	}
	if !d.order(leaf.seq, seq) {
		return false, false, InvalidSeqNo
	}
	prev = leaf.seq
	leaf.seq = seq
	return false, true, prev
}

// Remove implements State. It records a removal of info, replacing any
// update for the same name, and always reports true.
func (d *DiffState) Remove(info *names.NameInfo) bool {
	d.leaves[info.Name().Key()] = NewRemoveLeaf(info)
	return true
}

// Len implements State.
func (d *DiffState) Len() int {
	return len(d.leaves)
}

// Leaves implements State.
func (d *DiffState) Leaves() []Leaf {
	r := make([]Leaf, 0, len(d.leaves))
	for _, l := range d.DiffLeaves() {
		r = append(r, l)
	}
	return r
}

// DiffLeaves returns copies of the leaves ordered by name.
func (d *DiffState) DiffLeaves() []*DiffLeaf {
	r := make([]*DiffLeaf, 0, len(d.leaves))
	for _, l := range d.leaves {
		c := *l
		r = append(r, &c)
	}
	slices.SortFunc(r, func(a, b *DiffLeaf) int {
		return a.info.Compare(b.info)
	})
	return r
}

// Merge applies the changes of a later diff on top of this one.
func (d *DiffState) Merge(later *DiffState) {
	for _, l := range later.DiffLeaves() {
		switch l.op {
		case OpRemove:
			d.Remove(l.info)
		default:
			d.Update(l.info, l.seq)
		}
	}
}

// Release drops the name references taken when the diff was decoded.
// Leaves stay readable. It is a no-op for diffs built locally and for
// diffs that were already released.
func (d *DiffState) Release() {
	for _, info := range d.held {
		d.tracker.Release(info)
	}
	d.held = nil
}

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (d *DiffState) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, l := range d.DiffLeaves() {
		if err := enc.AppendObject(l); err != nil {
			return err
		}
	}
	return nil
}
