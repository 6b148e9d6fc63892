package syncstate

import (
	"bytes"
	"math"
	"testing"

	"github.com/spacemeshos/go-scale"
	"github.com/stretchr/testify/require"

	"github.com/chronosync/go-chronosync/codec"
	"github.com/chronosync/go-chronosync/names"
)

func TestDiffUpdateAndRemove(t *testing.T) {
	reg := names.NewRegistry()
	a := mustInfo(t, reg, "/a")
	d := NewDiffState(nil)

	inserted, _, _ := d.Update(a, NewSeqNo(0, 1))
	require.True(t, inserted)
	_, updated, prev := d.Update(a, NewSeqNo(0, 3))
	require.True(t, updated)
	require.Equal(t, NewSeqNo(0, 1), prev)
	_, updated, _ = d.Update(a, NewSeqNo(0, 2))
	require.False(t, updated)

	require.True(t, d.Remove(a))
	require.Equal(t, 1, d.Len())
	require.Equal(t, OpRemove, d.DiffLeaves()[0].Op())

	_, updated, prev = d.Update(a, NewSeqNo(0, 1))
	require.True(t, updated, "update after removal re-adds the producer")
	require.False(t, prev.IsValid())
	require.Equal(t, OpUpdate, d.DiffLeaves()[0].Op())
}

func TestDiffMerge(t *testing.T) {
	reg := names.NewRegistry()
	a, b, c := mustInfo(t, reg, "/a"), mustInfo(t, reg, "/b"), mustInfo(t, reg, "/c")
	first := NewDiffState(nil)
	first.Update(a, NewSeqNo(0, 1))
	first.Update(b, NewSeqNo(0, 1))

	second := NewDiffState(nil)
	second.Update(a, NewSeqNo(0, 2))
	second.Remove(b)
	second.Update(c, NewSeqNo(0, 5))

	first.Merge(second)
	leaves := first.DiffLeaves()
	require.Len(t, leaves, 3)
	require.True(t, leaves[0].Equal(NewDiffLeaf(a, NewSeqNo(0, 2))))
	require.True(t, leaves[1].Equal(NewRemoveLeaf(b)))
	require.True(t, leaves[2].Equal(NewDiffLeaf(c, NewSeqNo(0, 5))))
}

func TestDiffWire(t *testing.T) {
	reg := names.NewRegistry()
	d := NewDiffState(nil)
	d.Update(mustInfo(t, reg, "/b/%00"), NewSeqNo(3, 300))
	d.Update(mustInfo(t, reg, "/a"), NewSeqNo(1, 1))
	d.Remove(mustInfo(t, reg, "/c"))

	buf, err := codec.Encode(d.ToWire())
	require.NoError(t, err)
	var decoded WireDiff
	require.NoError(t, codec.Decode(buf, &decoded))

	// decoding into another registry yields the same leaves
	other := names.NewRegistry()
	got, err := DiffFromWire(other, &decoded, nil)
	require.NoError(t, err)
	want := d.Leaves()
	have := got.Leaves()
	require.Len(t, have, len(want))
	for i := range want {
		require.True(t, want[i].Equal(have[i]), "leaf %d", i)
	}
}

func TestDiffWireKeepsEmptyComponents(t *testing.T) {
	reg := names.NewRegistry()
	name := names.NewName([]byte("a"), nil, []byte("b"), []byte("/"))
	info := reg.FindOrCreate(name)
	d := NewDiffState(nil)
	d.Update(info, NewSeqNo(1, 2))

	buf, err := codec.Encode(d.ToWire())
	require.NoError(t, err)
	var decoded WireDiff
	require.NoError(t, codec.Decode(buf, &decoded))
	got, err := DiffFromWire(names.NewRegistry(), &decoded, nil)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	leaf := got.DiffLeaves()[0]
	require.Equal(t, 4, leaf.Info().Name().Len())
	require.True(t, name.Equal(leaf.Info().Name()))
	require.Equal(t, info.Digest().String(), leaf.Info().Digest().String())
}

func TestDiffFromWireReleasesNames(t *testing.T) {
	src := names.NewRegistry()
	d := NewDiffState(nil)
	d.Update(mustInfo(t, src, "/a"), NewSeqNo(0, 1))
	d.Remove(mustInfo(t, src, "/b"))

	reg := names.NewRegistry(names.WithPolicy(names.EvictUnreferenced))
	got, err := DiffFromWire(reg, d.ToWire(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())
	require.Zero(t, reg.Prune(), "decoded names are referenced")

	got.Release()
	require.Zero(t, reg.Len())
	require.Equal(t, 2, got.Len())
	got.Release()
}

func TestDecodeOversizedDiff(t *testing.T) {
	var buf bytes.Buffer
	_, err := scale.EncodeLen(scale.NewEncoder(&buf), maxDiffLeaves+1, math.MaxUint32)
	require.NoError(t, err)
	var m WireDiff
	require.ErrorIs(t, codec.Decode(buf.Bytes(), &m), scale.ErrDecodeTooManyElements)
	require.Empty(t, m.Leaves)
}

func TestDiffFromWireErrors(t *testing.T) {
	reg := names.NewRegistry(names.WithPolicy(names.EvictUnreferenced))
	bad := &WireDiff{Leaves: []WireLeaf{
		{Name: [][]byte{[]byte("a")}, Op: OpUpdate, Seq: 1},
		{Name: [][]byte{[]byte("b")}, Op: 7},
	}}
	_, err := DiffFromWire(reg, bad, nil)
	require.Error(t, err)
	require.Zero(t, reg.Len(), "names of a rejected diff are released")
}
