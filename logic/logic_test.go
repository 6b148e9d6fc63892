package logic

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/chronosync/go-chronosync/codec"
	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/log/logtest"
	"github.com/chronosync/go-chronosync/names"
	"github.com/chronosync/go-chronosync/syncstate"
)

func newLogic(t *testing.T, h Handler, opts ...Opt) *Logic {
	t.Helper()
	if h == nil {
		h = callbacks{}
	}
	opts = append([]Opt{WithLogger(logtest.New(t))}, opts...)
	l, err := NewWithHandler("/chronos", h, opts...)
	require.NoError(t, err)
	t.Cleanup(l.Stop)
	return l
}

// transfer encodes the diff the way it travels between replicas.
func transfer(t *testing.T, to *Logic, diff *syncstate.DiffState) *syncstate.DiffState {
	t.Helper()
	buf, err := codec.Encode(diff.ToWire())
	require.NoError(t, err)
	var m syncstate.WireDiff
	require.NoError(t, codec.Decode(buf, &m))
	decoded, err := to.DecodeDiff(&m)
	require.NoError(t, err)
	return decoded
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestInvalidPrefix(t *testing.T) {
	_, err := New("relative/prefix", nil, nil)
	require.Error(t, err)
}

func TestSyncPrefix(t *testing.T) {
	l := newLogic(t, nil)
	require.Equal(t, "/chronos", l.Prefix())
	require.Equal(t, "/chronos/00", l.SyncPrefix(digest.Empty()))

	root, err := New("/", nil, nil)
	t.Cleanup(root.Stop)
	require.NoError(t, err)
	require.Equal(t, "/00", root.SyncPrefix(digest.Empty()))
}

func TestAddLocalNames(t *testing.T) {
	l := newLogic(t, nil)
	require.Equal(t, "00", l.RootDigest())

	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	first := l.RootDigest()
	require.NotEqual(t, "00", first)

	// stale and equal updates leave the state alone
	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	require.NoError(t, l.AddLocalNames("/a", 0, 9))
	require.Equal(t, first, l.RootDigest())

	require.NoError(t, l.AddLocalNames("/a", 1, 2))
	require.NoError(t, l.AddLocalNames("/b", 1, 1))
	require.Equal(t, 2, l.State().Len())

	require.Error(t, l.AddLocalNames("no-slash", 1, 1))
}

func TestDiffSince(t *testing.T) {
	l := newLogic(t, nil)
	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	afterA := l.RootDigest()
	require.NoError(t, l.AddLocalNames("/b", 1, 5))
	require.NoError(t, l.AddLocalNames("/a", 1, 2))

	diff, found := l.DiffSince("00")
	require.True(t, found)
	leaves := diff.DiffLeaves()
	require.Len(t, leaves, 2)
	require.Equal(t, "/a", leaves[0].Info().String())
	require.Equal(t, syncstate.NewSeqNo(1, 2), leaves[0].Seq())
	require.Equal(t, "/b", leaves[1].Info().String())

	diff, found = l.DiffSince(afterA)
	require.True(t, found)
	require.Equal(t, 2, diff.Len())

	diff, found = l.DiffSince(l.RootDigest())
	require.True(t, found)
	require.Zero(t, diff.Len())

	_, found = l.DiffSince("ffff")
	require.False(t, found)
}

func TestDiffLogEviction(t *testing.T) {
	l := newLogic(t, nil, WithLogSize(2))
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, l.AddLocalNames("/a", 1, seq))
	}
	_, found := l.DiffSince("00")
	require.False(t, found)
	require.Equal(t, 1, l.FullDiff().Len())
}

func TestApplyDiff(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewMockHandler(ctrl)
	local := newLogic(t, nil)
	remote := newLogic(t, h)

	require.NoError(t, local.AddLocalNames("/a", 1, 3))
	require.NoError(t, local.AddLocalNames("/b", 2, 1))
	diff, found := local.DiffSince("00")
	require.True(t, found)

	h.EXPECT().OnUpdate([]MissingDataInfo{
		{Prefix: "/a", High: syncstate.NewSeqNo(1, 3), Low: syncstate.InvalidSeqNo},
		{Prefix: "/b", High: syncstate.NewSeqNo(2, 1), Low: syncstate.InvalidSeqNo},
	})
	require.NoError(t, remote.ApplyDiff(transfer(t, remote, diff)))
	require.Equal(t, local.RootDigest(), remote.RootDigest())

	// applying the same diff again reports nothing
	require.NoError(t, remote.ApplyDiff(transfer(t, remote, diff)))

	before := local.RootDigest()
	require.NoError(t, local.AddLocalNames("/a", 1, 4))
	require.NoError(t, local.Remove("/b"))
	diff, found = local.DiffSince(before)
	require.True(t, found)

	h.EXPECT().OnUpdate([]MissingDataInfo{
		{Prefix: "/a", High: syncstate.NewSeqNo(1, 4), Low: syncstate.NewSeqNo(1, 3)},
	})
	h.EXPECT().OnRemove("/b")
	require.NoError(t, remote.ApplyDiff(transfer(t, remote, diff)))
	require.Equal(t, local.RootDigest(), remote.RootDigest())
	require.Error(t, remote.ApplyDiff(nil))
}

func TestCallbacks(t *testing.T) {
	var (
		updates []MissingDataInfo
		removed []string
	)
	l, err := New("/chronos",
		func(u []MissingDataInfo) { updates = append(updates, u...) },
		func(prefix string) { removed = append(removed, prefix) },
		WithLogger(logtest.New(t)))
	require.NoError(t, err)
	t.Cleanup(l.Stop)

	diff := syncstate.NewDiffState(nil)
	a, err := l.Registry().FindOrCreateString("/a")
	require.NoError(t, err)
	b, err := l.Registry().FindOrCreateString("/b")
	require.NoError(t, err)
	diff.Update(a, syncstate.NewSeqNo(1, 1))
	diff.Remove(b)
	require.NoError(t, l.ApplyDiff(diff))
	want := []MissingDataInfo{{Prefix: "/a", High: syncstate.NewSeqNo(1, 1)}}
	require.Empty(t, cmp.Diff(want, updates, cmp.AllowUnexported(syncstate.SeqNo{})))
	// /b was never known so there is nothing to remove
	require.Empty(t, removed)

	diff = syncstate.NewDiffState(nil)
	diff.Remove(a)
	require.NoError(t, l.ApplyDiff(diff))
	require.Equal(t, []string{"/a"}, removed)
	require.Equal(t, "00", l.RootDigest())
}

func TestRemoveUnknown(t *testing.T) {
	l := newLogic(t, nil)
	require.NoError(t, l.Remove("/nobody"))
	require.Equal(t, "00", l.RootDigest())
	require.Zero(t, l.Registry().Len())
	require.Error(t, l.Remove("nobody"))
}

func TestStaleDiffsDoNotGrowRegistry(t *testing.T) {
	reg := names.NewRegistry(names.WithPolicy(names.EvictUnreferenced))
	l := newLogic(t, nil, WithRegistry(reg))
	require.NoError(t, l.AddLocalNames("/a", 1, 5))
	require.Equal(t, 1, reg.Len())

	src := newLogic(t, nil)
	for i := range 10 {
		diff := syncstate.NewDiffState(nil)
		a, err := src.Registry().FindOrCreateString("/a")
		require.NoError(t, err)
		gone, err := src.Registry().FindOrCreateString(fmt.Sprintf("/gone/%d", i))
		require.NoError(t, err)
		diff.Update(a, syncstate.NewSeqNo(1, 1))
		diff.Remove(gone)
		require.NoError(t, l.ApplyDiff(transfer(t, l, diff)))
		require.Equal(t, 1, reg.Len())
	}

	// names that only a state holds survive, others are pruned
	_, err := reg.FindOrCreateString("/unused")
	require.NoError(t, err)
	require.NoError(t, l.ApplyDiff(syncstate.NewDiffState(nil)))
	require.Equal(t, 1, reg.Len())
	require.NoError(t, l.Remove("/a"))
	require.Zero(t, reg.Len())
}

func TestNilDigestRequest(t *testing.T) {
	l := newLogic(t, nil)
	require.Equal(t, "/chronos/00", l.SyncPrefix(nil))
	_, found := l.ProcessSyncRequest("k", nil)
	require.False(t, found)
	require.True(t, l.Interests().Has("k"))

	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	diff, found := l.ProcessSyncRequest("k2", nil)
	require.True(t, found)
	require.Equal(t, 1, diff.Len())
}

func TestProcessSyncRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	resp := NewMockResponder(ctrl)
	l := newLogic(t, nil, WithResponder(resp))

	// nothing to say yet: the request waits for a change
	diff, found := l.ProcessSyncRequest("/chronos/00#1", digest.Empty())
	require.False(t, found)
	require.Nil(t, diff)
	require.Equal(t, 1, l.Interests().Len())

	resp.EXPECT().Respond("/chronos/00#1", gomock.Any()).Do(func(_ string, diff *syncstate.DiffState) {
		require.Equal(t, 1, diff.Len())
		require.Equal(t, "/a", diff.DiffLeaves()[0].Info().String())
	})
	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	require.Zero(t, l.Interests().Len())

	// a digest from the log is answered right away
	diff, found = l.ProcessSyncRequest("/chronos/00#2", digest.Empty())
	require.True(t, found)
	require.Equal(t, 1, diff.Len())

	// unknown digests are kept as unresolved
	unknown := digest.New()
	require.NoError(t, unknown.AppendString("elsewhere"))
	unknown.Finalize()
	_, found = l.ProcessSyncRequest("/chronos/x", unknown)
	require.False(t, found)
	entries := l.Interests().Entries()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Unresolved)

	// and answered with the full state on the next change
	resp.EXPECT().Respond("/chronos/x", gomock.Any()).Do(func(_ string, diff *syncstate.DiffState) {
		require.Equal(t, 2, diff.Len())
	})
	require.NoError(t, l.AddLocalNames("/b", 1, 1))
	require.Zero(t, l.Interests().Len())
}

func TestRecoveryOnRetransmission(t *testing.T) {
	l := newLogic(t, nil)
	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	require.NoError(t, l.AddLocalNames("/b", 1, 1))

	unknown := digest.New()
	require.NoError(t, unknown.AppendString("diverged"))
	unknown.Finalize()
	_, found := l.ProcessSyncRequest("/chronos/x/r1", unknown)
	require.False(t, found)
	require.Equal(t, 1, l.Interests().Len())

	before := counterValue(t, recoveries)
	diff, found := l.ProcessSyncRequest("/chronos/x/r1", unknown)
	require.True(t, found)
	require.Equal(t, before+1, counterValue(t, recoveries))
	require.Equal(t, 2, diff.Len())
	require.Zero(t, l.Interests().Len())
}

func TestEmptyDigestFallsBackToFullState(t *testing.T) {
	l := newLogic(t, nil, WithLogSize(1))
	require.NoError(t, l.AddLocalNames("/a", 1, 1))
	require.NoError(t, l.AddLocalNames("/b", 1, 1))
	diff, found := l.ProcessSyncRequest("k", digest.Empty())
	require.True(t, found)
	require.Equal(t, 2, diff.Len())
}

func TestInterestExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := newLogic(t, nil,
		WithClock(clock),
		WithInterestLifetime(time.Second),
		WithCheckPeriod(time.Second))

	_, found := l.ProcessSyncRequest("k", digest.Empty())
	require.False(t, found)
	require.Equal(t, 1, l.Interests().Len())

	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return l.Interests().Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSharedRegistry(t *testing.T) {
	a := newLogic(t, nil)
	b := newLogic(t, nil, WithRegistry(a.Registry()))
	require.NoError(t, a.AddLocalNames("/x", 1, 1))
	require.NoError(t, b.AddLocalNames("/x", 1, 1))
	require.Equal(t, a.RootDigest(), b.RootDigest())
	require.Equal(t, 1, a.Registry().Len())
}

func TestBlake3Digests(t *testing.T) {
	a := newLogic(t, nil, WithDigestAlgorithm(digest.Blake3))
	b := newLogic(t, nil)
	require.NoError(t, a.AddLocalNames("/x", 1, 1))
	require.NoError(t, b.AddLocalNames("/x", 1, 1))
	require.NotEqual(t, a.RootDigest(), b.RootDigest())
}
