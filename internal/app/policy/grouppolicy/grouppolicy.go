// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import "github.com/dalemusser/tallyhub/internal/domain/models"

// IsOwner reports whether pid created the group shown in view. It only looks
// at the snapshot it is given, so it is as fresh as the last feed delivery.
// An unknown creator or an unresolved participant is never an owner.
//
// Ownership gates display only (the owner badge). Increment and reset are
// open to every participant holding the group id.
func IsOwner(view models.GroupView, pid string) bool {
	return view.Owner != "" && view.Owner == pid
}

// IsGroupOwner is IsOwner for a full group record.
func IsGroupOwner(g models.Group, pid string) bool {
	return IsOwner(g.View(), pid)
}
