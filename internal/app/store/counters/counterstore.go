// internal/app/store/counters/counterstore.go
package counterstore

import (
	"context"
	"errors"
	"math"

	"github.com/dalemusser/tallyhub/internal/app/system/apperr"
	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"go.uber.org/zap"
)

// Store runs the counter protocol: relative atomic increments, an
// unconditional reset, and live feeds of a group's view.
type Store struct {
	db  syncstore.Store
	ids identity.Provider
	log *zap.Logger
}

func New(db syncstore.Store, ids identity.Provider, logger *zap.Logger) *Store {
	return &Store{db: db, ids: ids, log: logger}
}

// Subscribe opens a live feed of the group's view. The feed starts from the
// default view and stays open until cancelled or ctx is done.
func (s *Store) Subscribe(ctx context.Context, gid string) (*Feed, error) {
	path := syncstore.GroupPath(gid)
	sub, err := s.db.Subscribe(ctx, path)
	if err != nil {
		return nil, apperr.Persistence("subscribe", path, err)
	}
	return NewFeed(sub, s.log.With(zap.String("group_id", gid))), nil
}

// Increment adds delta to the group's count in one atomic transaction and
// returns the committed value. An absent or non-numeric count counts as 0.
// A sum outside the int64 range aborts the transaction with
// apperr.ErrCountOutOfRange and leaves the count as it was.
func (s *Store) Increment(ctx context.Context, gid string, delta int64) (int64, error) {
	pid, ok := s.ids.CurrentID(ctx)
	if !ok {
		return 0, apperr.ErrIdentityUnavailable
	}

	path := syncstore.CountPath(gid)
	n, err := syncstore.AtomicUpdate(ctx, s.db, path, func(cur int64, _ bool) (int64, error) {
		next, ok := addInt64(cur, delta)
		if !ok {
			return 0, apperr.ErrCountOutOfRange
		}
		return next, nil
	})
	if errors.Is(err, apperr.ErrCountOutOfRange) {
		s.log.Info("increment out of range",
			zap.String("group_id", gid),
			zap.Int64("delta", delta))
		return 0, err
	}
	if err != nil {
		s.log.Warn("increment failed",
			zap.String("group_id", gid),
			zap.Int64("delta", delta),
			zap.Error(err))
		return 0, apperr.Persistence("increment", path, err)
	}

	s.log.Debug("counter incremented",
		zap.String("group_id", gid),
		zap.String("participant_id", pid),
		zap.Int64("delta", delta),
		zap.Int64("count", n))
	return n, nil
}

// Reset overwrites the group's count with 0. It does not race-protect
// against concurrent increments: the last write wins. Callers confirm with
// the user before calling it.
func (s *Store) Reset(ctx context.Context, gid string) error {
	pid, ok := s.ids.CurrentID(ctx)
	if !ok {
		return apperr.ErrIdentityUnavailable
	}

	path := syncstore.CountPath(gid)
	if err := s.db.Set(ctx, path, int64(0)); err != nil {
		return apperr.Persistence("reset", path, err)
	}

	s.log.Info("counter reset",
		zap.String("group_id", gid),
		zap.String("participant_id", pid))
	return nil
}

// addInt64 returns a+b and false when the sum overflows.
func addInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
