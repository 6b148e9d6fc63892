// Package syncstate holds the producer -> sequence number state that replicas
// reconcile, together with the aggregate digest that summarizes it.
package syncstate

import "github.com/chronosync/go-chronosync/names"

// State is a set of leaves with at most one leaf per name.
type State interface {
	// Update records seq for info. It inserts a new leaf when info is absent
	// and advances the leaf when seq is newer. Equal or older sequence numbers
	// leave the state untouched and return (false, false, InvalidSeqNo).
	Update(info *names.NameInfo, seq SeqNo) (inserted, updated bool, prev SeqNo)
	// Remove drops the leaf for info and reports whether one existed.
	Remove(info *names.NameInfo) bool
	// Len returns the number of leaves.
	Len() int
	// Leaves returns a copy of the leaves ordered by name.
	Leaves() []Leaf
}

// Tracker is notified when a state starts and stops holding a name.
// *names.Registry implements it.
type Tracker interface {
	Retain(info *names.NameInfo)
	Release(info *names.NameInfo)
}

var _ Tracker = (*names.Registry)(nil)

type nopTracker struct{}

func (nopTracker) Retain(*names.NameInfo)  {}
func (nopTracker) Release(*names.NameInfo) {}
