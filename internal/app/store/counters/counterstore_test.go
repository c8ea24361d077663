package counterstore_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	counterstore "github.com/dalemusser/tallyhub/internal/app/store/counters"
	groupstore "github.com/dalemusser/tallyhub/internal/app/store/groups"
	"github.com/dalemusser/tallyhub/internal/app/system/apperr"
	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore/memstore"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"github.com/dalemusser/tallyhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"
)

func TestStore_Increment(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", 5)

	n, err := store.Increment(ctx, g.ID, -7)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if n != -2 {
		t.Errorf("returned count: got %d, want -2", n)
	}
	if got := fixtures.Count(ctx, g.ID); got != -2 {
		t.Errorf("stored count: got %d, want -2", got)
	}
}

func TestStore_Increment_AbsentCountStartsAtZero(t *testing.T) {
	db := memstore.New()
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	n, err := store.Increment(ctx, "0123456789abcdef0123", 3)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}
}

func TestStore_Increment_NonNumericCountStartsAtZero(t *testing.T) {
	db := memstore.New()
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	gid := "0123456789abcdef0123"
	if err := db.Set(ctx, syncstore.CountPath(gid), "lots"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	n, err := store.Increment(ctx, gid, 1)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count: got %d, want 1", n)
	}
}

func TestStore_Increment_ConcurrentDeltasAreNotLost(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p0", 100)

	var eg errgroup.Group
	var want int64 = 100
	for w := 0; w < 16; w++ {
		store := counterstore.New(db, identity.Fixed(identity.NewID()), zap.NewNop())
		delta := int64(w - 8)
		for i := 0; i < 25; i++ {
			want += delta
			eg.Go(func() error {
				_, err := store.Increment(ctx, g.ID, delta)
				return err
			})
		}
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	if got := fixtures.Count(ctx, g.ID); got != want {
		t.Errorf("count: got %d, want %d", got, want)
	}
}

func TestStore_Increment_SumOfDeltas(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		db := memstore.New()
		ctx := context.Background()
		gid := "0123456789abcdef0123"

		start := rapid.Int64Range(-1_000_000, 1_000_000).Draw(rt, "start")
		if err := db.Set(ctx, syncstore.CountPath(gid), start); err != nil {
			rt.Fatalf("Set failed: %v", err)
		}
		deltas := rapid.SliceOfN(rapid.Int64Range(-1000, 1000), 1, 40).Draw(rt, "deltas")
		callers := rapid.IntRange(1, 5).Draw(rt, "callers")

		stores := make([]*counterstore.Store, callers)
		for i := range stores {
			stores[i] = counterstore.New(db, identity.Fixed(identity.NewID()), zap.NewNop())
		}

		var eg errgroup.Group
		want := start
		for i, d := range deltas {
			want += d
			store := stores[i%callers]
			eg.Go(func() error {
				_, err := store.Increment(ctx, gid, d)
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			rt.Fatalf("Increment failed: %v", err)
		}

		snap, err := db.Get(ctx, syncstore.CountPath(gid))
		if err != nil {
			rt.Fatalf("Get failed: %v", err)
		}
		if got, _ := snap.Int64(); got != want {
			rt.Fatalf("count: got %d, want %d", got, want)
		}
	})
}

func TestStore_Increment_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		start int64
		delta int64
	}{
		{"above max", math.MaxInt64, 1},
		{"below min", math.MinInt64, -1},
		{"large delta", 10, math.MaxInt64},
		{"large negative delta", -10, math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memstore.New()
			fixtures := testutil.NewFixtures(t, db)
			store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
			ctx, cancel := testutil.TestContext()
			defer cancel()

			g := fixtures.CreateGroup(ctx, "Event", "p1", tt.start)

			_, err := store.Increment(ctx, g.ID, tt.delta)
			if !errors.Is(err, apperr.ErrCountOutOfRange) {
				t.Fatalf("expected ErrCountOutOfRange, got %v", err)
			}
			if apperr.IsPersistence(err) {
				t.Error("out of range must not be reported as a persistence failure")
			}
			if got := fixtures.Count(ctx, g.ID); got != tt.start {
				t.Errorf("count: got %d, want %d", got, tt.start)
			}
		})
	}
}

func TestStore_Increment_ReachesBounds(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", math.MaxInt64-1)
	if n, err := store.Increment(ctx, g.ID, 1); err != nil || n != math.MaxInt64 {
		t.Fatalf("Increment to max: got %d, %v", n, err)
	}
	if n, err := store.Increment(ctx, g.ID, math.MinInt64); err != nil || n != -1 {
		t.Fatalf("Increment by min: got %d, %v", n, err)
	}
}

func TestStore_Increment_IdentityUnavailable(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed(""), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", 4)

	_, err := store.Increment(ctx, g.ID, 1)
	if !errors.Is(err, apperr.ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable, got %v", err)
	}
	if got := fixtures.Count(ctx, g.ID); got != 4 {
		t.Errorf("count changed to %d without an identity", got)
	}
}

func TestStore_Increment_PersistenceError(t *testing.T) {
	db := testutil.NewFaultyStore(memstore.New())
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", 4)
	db.Fail("transact")

	_, err := store.Increment(ctx, g.ID, 1)
	var pe *apperr.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if pe.Op != "increment" {
		t.Errorf("Op: got %q, want %q", pe.Op, "increment")
	}

	db.Heal()
	if got := fixtures.Count(ctx, g.ID); got != 4 {
		t.Errorf("count: got %d, want 4", got)
	}
}

func TestStore_Reset(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		db := memstore.New()
		ctx := context.Background()
		gid := "0123456789abcdef0123"
		prior := rapid.Int64().Draw(rt, "prior")
		if err := db.Set(ctx, syncstore.CountPath(gid), prior); err != nil {
			rt.Fatalf("Set failed: %v", err)
		}

		store := counterstore.New(db, identity.Fixed("anyone"), zap.NewNop())
		if err := store.Reset(ctx, gid); err != nil {
			rt.Fatalf("Reset failed: %v", err)
		}

		snap, err := db.Get(ctx, syncstore.CountPath(gid))
		if err != nil {
			rt.Fatalf("Get failed: %v", err)
		}
		if got, ok := snap.Int64(); !ok || got != 0 {
			rt.Fatalf("count after reset: got %#v, want 0", snap.Value)
		}
	})
}

func TestStore_Reset_ByNonOwner(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "owner", 42)
	store := counterstore.New(db, identity.Fixed("visitor"), zap.NewNop())

	if err := store.Reset(ctx, g.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got := fixtures.Count(ctx, g.ID); got != 0 {
		t.Errorf("count: got %d, want 0", got)
	}
}

func TestStore_Reset_IdentityUnavailable(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed(""), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", 9)
	if err := store.Reset(ctx, g.ID); !errors.Is(err, apperr.ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable, got %v", err)
	}
	if got := fixtures.Count(ctx, g.ID); got != 9 {
		t.Errorf("count: got %d, want 9", got)
	}
}

func TestScenario_TwoParticipantsSeeEleven(t *testing.T) {
	db := memstore.New()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	gid, err := groupstore.New(db, identity.Fixed("A"), zap.NewNop()).Create(ctx, "Event")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	a := counterstore.New(db, identity.Fixed("A"), zap.NewNop())
	b := counterstore.New(db, identity.Fixed("B"), zap.NewNop())

	feedA, err := a.Subscribe(ctx, gid)
	if err != nil {
		t.Fatalf("Subscribe A failed: %v", err)
	}
	defer feedA.Cancel()
	feedB, err := b.Subscribe(ctx, gid)
	if err != nil {
		t.Fatalf("Subscribe B failed: %v", err)
	}
	defer feedB.Cancel()

	if v := nextView(t, feedA); v.Count != 0 || v.Name != "Event" {
		t.Fatalf("A initial view: got %+v", v)
	}
	if v := nextView(t, feedB); v.Count != 0 {
		t.Fatalf("B initial view: got %+v", v)
	}

	var eg errgroup.Group
	eg.Go(func() error { _, err := a.Increment(ctx, gid, 10); return err })
	eg.Go(func() error { _, err := b.Increment(ctx, gid, 1); return err })
	if err := eg.Wait(); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	for name, feed := range map[string]*counterstore.Feed{"A": feedA, "B": feedB} {
		if v := waitForCount(t, feed, 11); v.Owner != "A" {
			t.Errorf("%s: owner got %q, want %q", name, v.Owner, "A")
		}
	}
}

func TestScenario_BackToBackIncrements(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", 3)

	var eg errgroup.Group
	for i := 0; i < 10; i++ {
		eg.Go(func() error {
			_, err := store.Increment(ctx, g.ID, 1)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if got := fixtures.Count(ctx, g.ID); got != 13 {
		t.Errorf("count: got %d, want 13", got)
	}
}

func TestSubscribe_OwnWritesAreBroadcast(t *testing.T) {
	db := memstore.New()
	fixtures := testutil.NewFixtures(t, db)
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fixtures.CreateGroup(ctx, "Event", "p1", 0)
	feed, err := store.Subscribe(ctx, g.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer feed.Cancel()
	nextView(t, feed)

	for i := int64(1); i <= 3; i++ {
		if _, err := store.Increment(ctx, g.ID, 1); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if v := nextView(t, feed); v.Count != i {
			t.Fatalf("view %d: got count %d", i, v.Count)
		}
	}
	if err := store.Reset(ctx, g.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if v := nextView(t, feed); v.Count != 0 {
		t.Errorf("after reset: got count %d", v.Count)
	}
}

func TestSubscribe_MissingGroupKeepsDefaultView(t *testing.T) {
	db := memstore.New()
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	feed, err := store.Subscribe(ctx, "0123456789abcdef0123")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer feed.Cancel()

	select {
	case v := <-feed.Events():
		t.Fatalf("expected no view for a missing group, got %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
	if got := feed.Current(); got != models.DefaultGroupView() {
		t.Errorf("Current: got %+v, want default view", got)
	}
}

func TestSubscribe_PersistenceError(t *testing.T) {
	db := testutil.NewFaultyStore(memstore.New())
	db.Fail("subscribe")
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Subscribe(ctx, "0123456789abcdef0123"); !apperr.IsPersistence(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestSubscribe_CancelDetaches(t *testing.T) {
	db := memstore.New()
	store := counterstore.New(db, identity.Fixed("p1"), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	feed, err := store.Subscribe(ctx, "0123456789abcdef0123")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	feed.Cancel()
	feed.Cancel()

	select {
	case _, ok := <-feed.Events():
		if ok {
			t.Fatal("expected closed feed")
		}
	case <-time.After(time.Second):
		t.Fatal("feed not closed after Cancel")
	}
	if n := db.Subscribers(); n != 0 {
		t.Errorf("listeners still attached: %d", n)
	}
}

func nextView(t *testing.T, feed *counterstore.Feed) models.GroupView {
	t.Helper()
	select {
	case v, ok := <-feed.Events():
		if !ok {
			t.Fatalf("feed closed: %v", feed.Err())
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no view within 5s")
	}
	return models.GroupView{}
}

func waitForCount(t *testing.T, feed *counterstore.Feed, want int64) models.GroupView {
	t.Helper()
	for {
		v := nextView(t, feed)
		if v.Count == want {
			return v
		}
	}
}
