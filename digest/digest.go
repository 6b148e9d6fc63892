// Package digest implements the finalizable fingerprint used to summarize sync
// state. A Digest accepts appends until Finalize is called; afterwards it is an
// immutable value that can be compared, printed and shared between goroutines.
package digest

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/zeebo/blake3"
	"go.uber.org/zap/zapcore"

	"github.com/chronosync/go-chronosync/hash"
)

var (
	// ErrAlreadyFinalized is returned when appending to a finalized digest.
	ErrAlreadyFinalized = errors.New("digest already finalized")
	// ErrNotFinalized is returned when a digest is compared, serialized or
	// appended to another one before it is finalized.
	ErrNotFinalized = errors.New("digest not finalized")
)

// emptyState is the textual form of the digest of a state without leaves.
const emptyState = "00"

// Algorithm selects the hash function behind a Digest.
type Algorithm uint8

const (
	// SHA256 uses minio sha256-simd.
	SHA256 Algorithm = iota
	// Blake3 uses pooled blake3 hashers.
	Blake3
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case Blake3:
		return "blake3"
	default:
		return fmt.Sprintf("<unknown algorithm %d>", a)
	}
}

// ParseAlgorithm parses the algorithm name as used in the config.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "sha256":
		return SHA256, nil
	case "blake3":
		return Blake3, nil
	default:
		return 0, fmt.Errorf("unknown digest algorithm %q", s)
	}
}

// Opt configures a Digest.
type Opt func(*Digest)

// WithAlgorithm sets the hash algorithm.
func WithAlgorithm(a Algorithm) Opt {
	return func(d *Digest) {
		d.algo = a
	}
}

// Digest is a streaming hash that becomes a comparable value once finalized.
// Appending is not safe for concurrent use; a finalized Digest is read-only.
type Digest struct {
	algo  Algorithm
	h     hash.Hash
	sum   []byte
	final bool
}

// New creates an empty, unfinalized digest.
func New(opts ...Opt) *Digest {
	d := &Digest{}
	for _, opt := range opts {
		opt(d)
	}
	switch d.algo {
	case Blake3:
		d.h = hash.GetHasher()
	default:
		d.algo = SHA256
		d.h = hash.New()
	}
	return d
}

// Empty returns the digest of a state that holds no leaves.
func Empty() *Digest {
	d, err := Parse(emptyState)
	if err != nil {
		panic("BUG: bad empty state digest: " + err.Error())
	}
	return d
}

// Parse decodes the hex form produced by String. The result is finalized.
func Parse(s string) (*Digest, error) {
	if s == "" {
		return nil, errors.New("empty digest string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse digest %q: %w", s, err)
	}
	return &Digest{sum: b, final: true}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(s string) *Digest {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Algorithm returns the hash algorithm of the digest.
func (d *Digest) Algorithm() Algorithm {
	return d.algo
}

// Finalized reports whether Finalize was called.
func (d *Digest) Finalized() bool {
	return d.final
}

// Write implements io.Writer.
func (d *Digest) Write(p []byte) (int, error) {
	if d.final {
		return 0, ErrAlreadyFinalized
	}
	return d.h.Write(p)
}

// Append adds raw bytes to the digest.
func (d *Digest) Append(p []byte) error {
	_, err := d.Write(p)
	return err
}

// AppendString adds the UTF-8 bytes of s to the digest.
func (d *Digest) AppendString(s string) error {
	return d.Append([]byte(s))
}

// AppendUint adds the decimal text form of v to the digest.
func (d *Digest) AppendUint(v uint64) error {
	var buf [20]byte
	return d.Append(strconv.AppendUint(buf[:0], v, 10))
}

// AppendDigest adds the value of another, finalized digest.
func (d *Digest) AppendDigest(other *Digest) error {
	if !other.final {
		return ErrNotFinalized
	}
	return d.Append(other.sum)
}

// Finalize fixes the digest value. Subsequent appends fail, repeated calls
// do nothing.
func (d *Digest) Finalize() {
	if d.final {
		return
	}
	d.sum = d.h.Sum(nil)
	d.final = true
	if h, ok := d.h.(*blake3.Hasher); ok {
		hash.PutHasher(h)
	}
	d.h = nil
}

// Bytes returns a copy of the finalized value.
func (d *Digest) Bytes() ([]byte, error) {
	if !d.final {
		return nil, ErrNotFinalized
	}
	return bytes.Clone(d.sum), nil
}

// Equal reports whether both digests hold the same value.
func (d *Digest) Equal(other *Digest) (bool, error) {
	c, err := d.Compare(other)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// Compare orders finalized digests by their byte values.
func (d *Digest) Compare(other *Digest) (int, error) {
	if !d.final || !other.final {
		return 0, ErrNotFinalized
	}
	return bytes.Compare(d.sum, other.sum), nil
}

// IsEmptyState reports whether d is the empty state sentinel.
func (d *Digest) IsEmptyState() bool {
	return d.final && len(d.sum) == 1 && d.sum[0] == 0
}

// String implements fmt.Stringer. An unfinalized digest has no textual form
// and yields an empty string.
func (d *Digest) String() string {
	if !d.final {
		return ""
	}
	return hex.EncodeToString(d.sum)
}

// ShortString returns an abbreviated hex form suitable for logs.
func (d *Digest) ShortString() string {
	s := d.String()
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (d *Digest) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("digest", d.ShortString())
	enc.AddBool("final", d.final)
	return nil
}
