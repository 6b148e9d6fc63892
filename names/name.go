package names

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ErrInvalidName is returned for names that are not absolute URIs.
var ErrInvalidName = errors.New("invalid name")

// Name is an immutable hierarchical name made of opaque byte components.
type Name struct {
	comps []string
}

// NewName creates a name from raw components.
func NewName(components ...[]byte) Name {
	comps := make([]string, len(components))
	for i, c := range components {
		comps[i] = string(c)
	}
	return Name{comps: comps}
}

// ParseName parses a URI such as "/ndn/app/%00%01". Empty components
// produced by repeated slashes are skipped.
func ParseName(uri string) (Name, error) {
	if !strings.HasPrefix(uri, "/") {
		return Name{}, fmt.Errorf("%w: %q is not absolute", ErrInvalidName, uri)
	}
	var comps []string
	for _, part := range strings.Split(uri[1:], "/") {
		if part == "" {
			continue
		}
		c, err := url.PathUnescape(part)
		if err != nil {
			return Name{}, fmt.Errorf("%w: component %q: %v", ErrInvalidName, part, err)
		}
		comps = append(comps, c)
	}
	return Name{comps: comps}, nil
}

// MustParseName is like ParseName but panics on error.
func MustParseName(uri string) Name {
	n, err := ParseName(uri)
	if err != nil {
		panic(err)
	}
	return n
}

// Len returns the number of components.
func (n Name) Len() int {
	return len(n.comps)
}

// Component returns a copy of the i-th component.
func (n Name) Component(i int) []byte {
	return []byte(n.comps[i])
}

// Append returns a new name with the components added at the end.
func (n Name) Append(components ...[]byte) Name {
	comps := make([]string, 0, len(n.comps)+len(components))
	comps = append(comps, n.comps...)
	for _, c := range components {
		comps = append(comps, string(c))
	}
	return Name{comps: comps}
}

// Equal reports whether both names have the same components.
func (n Name) Equal(other Name) bool {
	if len(n.comps) != len(other.comps) {
		return false
	}
	for i := range n.comps {
		if n.comps[i] != other.comps[i] {
			return false
		}
	}
	return true
}

// Compare orders names component by component. Shorter components sort
// first, components of equal length are compared bytewise, and a name sorts
// before any longer name it is a prefix of.
func (n Name) Compare(other Name) int {
	for i := 0; i < len(n.comps) && i < len(other.comps); i++ {
		a, b := n.comps[i], other.comps[i]
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
		if c := bytes.Compare([]byte(a), []byte(b)); c != 0 {
			return c
		}
	}
	switch {
	case len(n.comps) < len(other.comps):
		return -1
	case len(n.comps) > len(other.comps):
		return 1
	}
	return 0
}

// String returns the URI form of the name.
func (n Name) String() string {
	if len(n.comps) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, c := range n.comps {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(c))
	}
	return sb.String()
}

// Key returns an unambiguous map key for the name.
func (n Name) Key() string {
	var sb strings.Builder
	for _, c := range n.comps {
		fmt.Fprintf(&sb, "%d:", len(c))
		sb.WriteString(c)
	}
	return sb.String()
}

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (n Name) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, c := range n.comps {
		enc.AppendString(url.PathEscape(c))
	}
	return nil
}
