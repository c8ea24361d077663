// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"strings"

	"github.com/dalemusser/tallyhub/internal/app/system/apperr"
	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/app/system/normalize"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store creates and reads group records.
type Store struct {
	db  syncstore.Store
	ids identity.Provider
	log *zap.Logger
}

func New(db syncstore.Store, ids identity.Provider, logger *zap.Logger) *Store {
	return &Store{db: db, ids: ids, log: logger}
}

// NewGroupID returns a fresh 20-character lowercase hex group id.
func NewGroupID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:models.GroupIDLen]
}

// Create writes a new group owned by the current participant and returns its
// id. The whole record (name, zero count, creator, creator membership) lands
// in a single write, so no reader ever sees a half-created group.
func (s *Store) Create(ctx context.Context, name string) (string, error) {
	pid, ok := s.ids.CurrentID(ctx)
	if !ok {
		return "", apperr.ErrIdentityUnavailable
	}

	g := models.Group{
		ID:        NewGroupID(),
		Name:      normalize.GroupName(name),
		Count:     0,
		CreatedBy: pid,
		Members:   map[string]bool{pid: true},
	}

	path := syncstore.GroupPath(g.ID)
	if err := s.db.Set(ctx, path, g); err != nil {
		return "", apperr.Persistence("create", path, err)
	}

	s.log.Info("group created",
		zap.String("group_id", g.ID),
		zap.String("created_by", pid))
	return g.ID, nil
}

// GetByID reads a group record. found is false when the group does not
// exist; that is not an error.
func (s *Store) GetByID(ctx context.Context, gid string) (g models.Group, found bool, err error) {
	path := syncstore.GroupPath(gid)
	snap, err := s.db.Get(ctx, path)
	if err != nil {
		return models.Group{}, false, apperr.Persistence("read", path, err)
	}
	if !snap.Exists() {
		return models.Group{}, false, nil
	}
	if err := snap.Decode(&g); err != nil {
		return models.Group{}, false, apperr.Persistence("read", path, err)
	}
	g.ID = gid
	return g, true, nil
}
