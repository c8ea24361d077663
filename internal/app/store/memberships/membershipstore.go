// internal/app/store/memberships/membershipstore.go
package membershipstore

// Terminology:
//   - participant id: the opaque anonymous id issued by the identity package
//   - member: a participant that has opened a group at least once

import (
	"context"
	"sort"

	"github.com/dalemusser/tallyhub/internal/app/system/apperr"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"go.uber.org/zap"
)

type Store struct {
	db  syncstore.Store
	log *zap.Logger
}

func New(db syncstore.Store, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger}
}

// Join records pid as a member of the group. It is idempotent and
// best-effort: failures are logged and never returned, so a broken
// membership write can not block viewing or mutating the counter.
func (s *Store) Join(ctx context.Context, gid, pid string) {
	if pid == "" {
		return
	}
	if err := s.db.Set(ctx, syncstore.MemberPath(gid, pid), true); err != nil {
		fail := apperr.MembershipWriteFailure{GroupID: gid, ParticipantID: pid, Err: err}
		s.log.Warn("membership not recorded",
			zap.String("group_id", gid),
			zap.String("participant_id", pid),
			zap.Error(fail))
	}
}

// Members lists the participant ids recorded for the group, sorted.
func (s *Store) Members(ctx context.Context, gid string) ([]string, error) {
	path := syncstore.MembersPath(gid)
	snap, err := s.db.Get(ctx, path)
	if err != nil {
		return nil, apperr.Persistence("read", path, err)
	}
	set, _ := snap.Value.(map[string]any)
	out := make([]string, 0, len(set))
	for pid, v := range set {
		if v == true {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsMember reports whether pid has joined the group.
func (s *Store) IsMember(ctx context.Context, gid, pid string) (bool, error) {
	path := syncstore.MemberPath(gid, pid)
	snap, err := s.db.Get(ctx, path)
	if err != nil {
		return false, apperr.Persistence("read", path, err)
	}
	return snap.Value == true, nil
}
