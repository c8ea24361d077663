package testutil

import (
	"context"
	"testing"

	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"github.com/google/uuid"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	store syncstore.Store
	t     *testing.T
}

// NewFixtures creates a new Fixtures instance writing to store.
func NewFixtures(t *testing.T, store syncstore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{store: store, t: t}
}

// Store returns the underlying store for direct access in tests.
func (f *Fixtures) Store() syncstore.Store {
	return f.store
}

// CreateGroup writes a complete group record owned by createdBy and returns
// it with its generated id.
func (f *Fixtures) CreateGroup(ctx context.Context, name, createdBy string, count int64) models.Group {
	f.t.Helper()

	g := models.Group{
		ID:        uuid.NewString()[:8] + "fixture",
		Name:      name,
		Count:     count,
		CreatedBy: createdBy,
		Members:   map[string]bool{createdBy: true},
	}
	if err := f.store.Set(ctx, syncstore.GroupPath(g.ID), g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// Count reads a group's counter, failing the test on error.
func (f *Fixtures) Count(ctx context.Context, gid string) int64 {
	f.t.Helper()

	snap, err := f.store.Get(ctx, syncstore.CountPath(gid))
	if err != nil {
		f.t.Fatalf("failed to read count: %v", err)
	}
	n, _ := snap.Int64()
	return n
}

// Members reads a group's membership set, failing the test on error.
func (f *Fixtures) Members(ctx context.Context, gid string) map[string]any {
	f.t.Helper()

	snap, err := f.store.Get(ctx, syncstore.MembersPath(gid))
	if err != nil {
		f.t.Fatalf("failed to read members: %v", err)
	}
	m, _ := snap.Value.(map[string]any)
	return m
}
