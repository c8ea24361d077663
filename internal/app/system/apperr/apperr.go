// Package apperr holds the error taxonomy shared by the counter stores and
// the HTTP features.
//
//   - ErrIdentityUnavailable: a mutation was attempted before the participant
//     id resolved. Retry once it has.
//   - *PersistenceError: the synchronized store rejected or failed an
//     operation. Carries the store diagnostic.
//   - ErrCountOutOfRange: an increment would push the count past the int64
//     range. Nothing is written.
//   - MembershipWriteFailure: logged and dropped; never returned to callers.
//
// A missing group is not an error anywhere in this taxonomy.
package apperr

import (
	"errors"
	"fmt"
)

// ErrIdentityUnavailable is returned by mutating operations when no
// participant id is available.
var ErrIdentityUnavailable = errors.New("identity unavailable; please retry")

// ErrCountOutOfRange is returned by Increment when the new count would not
// fit in an int64. The stored count is left unchanged.
var ErrCountOutOfRange = errors.New("count out of range")

// PersistenceError wraps a failure reported by the synchronized store.
type PersistenceError struct {
	Op   string // create, increment, reset, read, subscribe
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError. A nil err stays nil.
func Persistence(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Path: path, Err: err}
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// MembershipWriteFailure describes a membership entry that could not be
// recorded. It only ever reaches the log.
type MembershipWriteFailure struct {
	GroupID       string
	ParticipantID string
	Err           error
}

func (e MembershipWriteFailure) Error() string {
	return fmt.Sprintf("membership %s/%s not recorded: %v", e.GroupID, e.ParticipantID, e.Err)
}

func (e MembershipWriteFailure) Unwrap() error { return e.Err }
