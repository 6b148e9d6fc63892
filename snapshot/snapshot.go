// Package snapshot persists the leaves of a replica state to a file so that a
// restarted replica resumes from the same digest.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/chronosync/go-chronosync/codec"
	"github.com/chronosync/go-chronosync/names"
	"github.com/chronosync/go-chronosync/syncstate"
)

// ErrLocked is returned when another process holds the snapshot lock.
var ErrLocked = errors.New("snapshot is locked")

func lockPath(path string) string {
	return path + ".lock"
}

// Write replaces the snapshot at path with the leaves of diff. The file is
// written atomically while holding path.lock.
func Write(path string, diff *syncstate.DiffState) error {
	fl := flock.New(lockPath(path))
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("flock %s: %w", lockPath(path), err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, path)
	}
	defer fl.Unlock()

	buf, err := codec.Encode(diff.ToWire())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// Read loads the snapshot at path, interning names in reg.
func Read(path string, reg *names.Registry, order syncstate.Order) (*syncstate.DiffState, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var m syncstate.WireDiff
	if err := codec.Decode(buf, &m); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return syncstate.DiffFromWire(reg, &m, order)
}
