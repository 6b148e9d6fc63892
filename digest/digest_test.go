package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func finalized(t *testing.T, algo Algorithm, parts ...string) *Digest {
	t.Helper()
	d := New(WithAlgorithm(algo))
	for _, p := range parts {
		require.NoError(t, d.AppendString(p))
	}
	d.Finalize()
	return d
}

func TestAppendAfterFinalize(t *testing.T) {
	d := New()
	require.NoError(t, d.Append([]byte("a")))
	d.Finalize()
	d.Finalize()
	require.ErrorIs(t, d.Append([]byte("b")), ErrAlreadyFinalized)
	require.ErrorIs(t, d.AppendUint(1), ErrAlreadyFinalized)
	require.ErrorIs(t, d.AppendString("c"), ErrAlreadyFinalized)
	require.ErrorIs(t, d.AppendDigest(Empty()), ErrAlreadyFinalized)
	_, err := d.Write([]byte("d"))
	require.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestCompareUnfinalized(t *testing.T) {
	a := New()
	b := finalized(t, SHA256, "b")
	_, err := a.Compare(b)
	require.ErrorIs(t, err, ErrNotFinalized)
	_, err = b.Equal(a)
	require.ErrorIs(t, err, ErrNotFinalized)
	_, err = a.Bytes()
	require.ErrorIs(t, err, ErrNotFinalized)
	require.ErrorIs(t, b.AppendDigest(a), ErrAlreadyFinalized)
	require.ErrorIs(t, New().AppendDigest(a), ErrNotFinalized)
	require.Empty(t, a.String())
}

func TestOrderSensitive(t *testing.T) {
	for _, algo := range []Algorithm{SHA256, Blake3} {
		t.Run(algo.String(), func(t *testing.T) {
			ab := finalized(t, algo, "a", "b")
			ba := finalized(t, algo, "b", "a")
			eq, err := ab.Equal(ba)
			require.NoError(t, err)
			require.False(t, eq)

			again := finalized(t, algo, "a", "b")
			eq, err = ab.Equal(again)
			require.NoError(t, err)
			require.True(t, eq)
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{SHA256, Blake3} {
		d := finalized(t, algo, "/a", "1")
		parsed, err := Parse(d.String())
		require.NoError(t, err)
		eq, err := parsed.Equal(d)
		require.NoError(t, err)
		require.True(t, eq)
		require.Equal(t, d.String(), parsed.String())
	}
	_, err := Parse("zz")
	require.Error(t, err)
	_, err = Parse("")
	require.Error(t, err)
}

func TestAppendUintIsDecimalText(t *testing.T) {
	a := New()
	require.NoError(t, a.AppendUint(1234))
	a.Finalize()
	b := finalized(t, SHA256, "1234")
	eq, err := a.Equal(b)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestNestedDigest(t *testing.T) {
	inner := finalized(t, SHA256, "component")
	raw, err := inner.Bytes()
	require.NoError(t, err)

	nested := New()
	require.NoError(t, nested.AppendDigest(inner))
	nested.Finalize()

	flat := New()
	require.NoError(t, flat.Append(raw))
	flat.Finalize()

	c, err := nested.Compare(flat)
	require.NoError(t, err)
	require.Zero(t, c)
}

func TestEmptyState(t *testing.T) {
	e := Empty()
	require.Equal(t, "00", e.String())
	require.True(t, e.IsEmptyState())
	require.False(t, finalized(t, SHA256).IsEmptyState())
	eq, err := e.Equal(Empty())
	require.NoError(t, err)
	require.True(t, eq)
}

func TestParseAlgorithm(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Algorithm
		err  bool
	}{
		{in: "", want: SHA256},
		{in: "sha256", want: SHA256},
		{in: "blake3", want: Blake3},
		{in: "md5", err: true},
	} {
		got, err := ParseAlgorithm(tc.in)
		if tc.err {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}
