package syncstate

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// SeqNo is a producer sequence number within a session.
// The zero value is the invalid (unset) sequence number.
type SeqNo struct {
	Session uint64
	Seq     uint64
	valid   bool
}

// InvalidSeqNo is returned where no previous sequence number exists.
var InvalidSeqNo = SeqNo{}

// NewSeqNo creates a valid sequence number.
func NewSeqNo(session, seq uint64) SeqNo {
	return SeqNo{Session: session, Seq: seq, valid: true}
}

// IsValid reports whether s was set.
func (s SeqNo) IsValid() bool {
	return s.valid
}

// String implements fmt.Stringer.
func (s SeqNo) String() string {
	if !s.valid {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d", s.Session, s.Seq)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s SeqNo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if !s.valid {
		enc.AddBool("valid", false)
		return nil
	}
	enc.AddUint64("session", s.Session)
	enc.AddUint64("seq", s.Seq)
	return nil
}

// Order is a strict "less than" predicate over valid sequence numbers.
// A sequence number b is newer than a iff Order(a, b).
type Order func(a, b SeqNo) bool

// SessionThenSeq orders by session first and by seq within a session.
func SessionThenSeq(a, b SeqNo) bool {
	if a.Session != b.Session {
		return a.Session < b.Session
	}
	return a.Seq < b.Seq
}

// SameSessionOnly treats a sequence number as newer only when it belongs to
// the same session and has a greater seq. Session changes never advance state.
func SameSessionOnly(a, b SeqNo) bool {
	return a.Session == b.Session && a.Seq < b.Seq
}

// ParseOrder returns the order registered under name. The empty name selects
// SessionThenSeq.
func ParseOrder(name string) (Order, error) {
	switch name {
	case "", "session-then-seq":
		return SessionThenSeq, nil
	case "same-session":
		return SameSessionOnly, nil
	default:
		return nil, fmt.Errorf("unknown seq order %q", name)
	}
}
