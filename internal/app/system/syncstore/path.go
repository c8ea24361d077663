package syncstore

import (
	"fmt"
	"strings"
)

// Root collections of the key tree.
const (
	GroupsRoot = "groups"
)

// GroupPath is the key of a whole group record.
func GroupPath(gid string) string {
	return Join(GroupsRoot, gid)
}

// CountPath is the key of a group's shared counter.
func CountPath(gid string) string {
	return Join(GroupsRoot, gid, "count")
}

// MembersPath is the key of a group's membership set.
func MembersPath(gid string) string {
	return Join(GroupsRoot, gid, "members")
}

// MemberPath is the key of one participant's membership entry.
func MemberPath(gid, pid string) string {
	return Join(GroupsRoot, gid, "members", pid)
}

// Join builds a path from segments, ignoring empty ones.
func Join(parts ...string) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, Split(p)...)
	}
	return strings.Join(segs, "/")
}

// Split returns the non-empty segments of path.
func Split(path string) []string {
	raw := strings.Split(path, "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// Validate checks that path has at least one segment and that no segment
// contains characters the backends reserve.
func Validate(path string) error {
	segs := Split(path)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, s := range segs {
		if strings.ContainsAny(s, ".$#[]") {
			return fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
		}
	}
	return nil
}

// IsAncestor reports whether anc is a strict ancestor of path.
func IsAncestor(anc, path string) bool {
	a, p := Split(anc), Split(path)
	if len(a) >= len(p) {
		return false
	}
	for i := range a {
		if a[i] != p[i] {
			return false
		}
	}
	return true
}

// Related reports whether a write at one path can change the value at the
// other: the paths are equal or one contains the other.
func Related(a, b string) bool {
	return Join(a) == Join(b) || IsAncestor(a, b) || IsAncestor(b, a)
}
