// Package syncstore defines the synchronized key-tree store that holds every
// shared counter. A store offers point reads and writes, atomic
// read-modify-write transactions on a single key, and push subscriptions that
// deliver the full value at a key every time it changes.
//
// Keys are slash-separated paths (groups/{gid}, groups/{gid}/count, ...).
// Values are JSON-like trees: nil, bool, int64, float64, string and
// map[string]any. Every value crossing the interface is normalized to that
// shape, so backends and callers never see driver-specific types.
package syncstore

import (
	"context"
	"errors"
)

// ErrMaxRetries is returned by Transact when a backend keeps losing the race
// against other writers and gives up.
var ErrMaxRetries = errors.New("syncstore: transaction exceeded retry limit")

// ErrInvalidPath is returned for empty paths or paths with segments that
// cannot be stored.
var ErrInvalidPath = errors.New("syncstore: invalid path")

// UpdateFunc computes the next value of a key from its current value.
// current is nil when the key is absent. Returning nil removes the key.
// Returning an error aborts the transaction without writing.
//
// Backends may invoke the function more than once, so it must not have side
// effects, and it must not call back into the store.
type UpdateFunc func(current any) (any, error)

// Store is the synchronized store. Implementations must be safe for
// concurrent use and must linearize Transact against every other write to
// the same key.
type Store interface {
	// Get reads the value at path. A missing value is not an error; the
	// returned snapshot reports Exists() == false.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Set overwrites the subtree at path in one operation. Readers and
	// subscribers never observe a partially written subtree.
	Set(ctx context.Context, path string, value any) error

	// Transact atomically applies fn to the value at path and returns the
	// committed value.
	Transact(ctx context.Context, path string, fn UpdateFunc) (Snapshot, error)

	// Subscribe opens a standing subscription to path. The current value is
	// delivered first, then one snapshot per change, until the subscription
	// is cancelled or ctx is done.
	Subscribe(ctx context.Context, path string) (*Subscription, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Snapshot is the value at a path at one point in time.
type Snapshot struct {
	Path  string
	Value any
}

// Exists reports whether a value was present at the path.
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Key returns the last segment of the snapshot's path.
func (s Snapshot) Key() string {
	segs := Split(s.Path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Int64 returns the value as an integer when it is numeric and whole.
func (s Snapshot) Int64() (int64, bool) {
	return AsInt64(s.Value)
}

// Decode copies an object value into out using its bson struct tags.
// Decoding an absent value leaves out untouched.
func (s Snapshot) Decode(out any) error {
	if s.Value == nil {
		return nil
	}
	return decodeInto(s.Value, out)
}
