package syncstate

import (
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/chronosync/go-chronosync/names"
)

const (
	// maxNameComponents bounds the number of components of a name on the wire.
	maxNameComponents = 256
	// maxComponentLength bounds the size of a single name component.
	maxComponentLength = 4096
	// maxDiffLeaves bounds the number of leaves in a decoded diff.
	maxDiffLeaves = 1 << 16
)

// WireLeaf is the encoded form of a DiffLeaf.
type WireLeaf struct {
	Name    [][]byte
	Op      Operation
	Session uint64
	Seq     uint64
}

// EncodeScale implements scale.Encodable.
func (l *WireLeaf) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeLen(enc, uint32(len(l.Name)), maxNameComponents)
		if err != nil {
			return total, err
		}
		total += n
		for _, c := range l.Name {
			n, err := scale.EncodeByteSliceWithLimit(enc, c, maxComponentLength)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	{
		n, err := scale.EncodeByte(enc, byte(l.Op))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, l.Session)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, l.Seq)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (l *WireLeaf) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		count, n, err := scale.DecodeLen(dec, maxNameComponents)
		if err != nil {
			return total, err
		}
		total += n
		l.Name = make([][]byte, 0, count)
		for range count {
			field, n, err := scale.DecodeByteSliceWithLimit(dec, maxComponentLength)
			if err != nil {
				return total, err
			}
			total += n
			l.Name = append(l.Name, field)
		}
	}
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		l.Op = Operation(field)
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		l.Session = field
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		l.Seq = field
	}
	return total, nil
}

// WireDiff is the encoded form of a DiffState.
type WireDiff struct {
	Leaves []WireLeaf
}

// EncodeScale implements scale.Encodable.
func (m *WireDiff) EncodeScale(enc *scale.Encoder) (int, error) {
	if len(m.Leaves) > maxDiffLeaves {
		return 0, fmt.Errorf("diff too large: %d leaves", len(m.Leaves))
	}
	return scale.EncodeStructSliceWithLimit(enc, m.Leaves, maxDiffLeaves)
}

// DecodeScale implements scale.Decodable.
func (m *WireDiff) DecodeScale(dec *scale.Decoder) (int, error) {
	leaves, n, err := scale.DecodeStructSliceWithLimit[WireLeaf](dec, maxDiffLeaves)
	if err != nil {
		return n, err
	}
	m.Leaves = leaves
	return n, nil
}

// ToWire converts the diff to its encoded form.
func (d *DiffState) ToWire() *WireDiff {
	leaves := d.DiffLeaves()
	m := &WireDiff{Leaves: make([]WireLeaf, len(leaves))}
	for i, l := range leaves {
		name := l.info.Name()
		comps := make([][]byte, name.Len())
		for j := range comps {
			comps[j] = name.Component(j)
		}
		m.Leaves[i] = WireLeaf{
			Name:    comps,
			Op:      l.op,
			Session: l.seq.Session,
			Seq:     l.seq.Seq,
		}
	}
	return m
}

// DiffFromWire acquires the names of a decoded diff in reg and builds a
// DiffState. The diff keeps the names referenced until Release is called.
func DiffFromWire(reg *names.Registry, m *WireDiff, order Order) (*DiffState, error) {
	d := NewDiffState(order)
	d.tracker = reg
	for _, wl := range m.Leaves {
		name := names.NewName(wl.Name...)
		if wl.Op != OpUpdate && wl.Op != OpRemove {
			d.Release()
			return nil, fmt.Errorf("diff leaf %s: unknown operation %d", name, wl.Op)
		}
		info := reg.Acquire(name)
		d.held = append(d.held, info)
		switch wl.Op {
		case OpUpdate:
			d.Update(info, NewSeqNo(wl.Session, wl.Seq))
		case OpRemove:
			d.Remove(info)
		}
	}
	return d, nil
}
