// Package storetest is a conformance suite run against every syncstore
// backend. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EventTimeout bounds how long Next waits for a snapshot.
const EventTimeout = 5 * time.Second

// Next waits for the next snapshot on sub or fails the test.
func Next(t testing.TB, sub *syncstore.Subscription) syncstore.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription %s closed: %v", sub.Path(), sub.Err())
		}
		return snap
	case <-time.After(EventTimeout):
		t.Fatalf("no snapshot on %s within %s", sub.Path(), EventTimeout)
	}
	return syncstore.Snapshot{}
}

// NoEvent fails the test if sub delivers anything within wait.
func NoEvent(t testing.TB, sub *syncstore.Subscription, wait time.Duration) {
	t.Helper()
	select {
	case snap, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected snapshot on %s: %#v", sub.Path(), snap.Value)
		}
	case <-time.After(wait):
	}
}

// freshGroup returns a group id no other test uses, so suites can share a
// database.
func freshGroup() string {
	return "t" + uuid.NewString()[:8]
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return c
}

// Run exercises the full Store contract against the backend newStore returns.
func Run(t *testing.T, newStore func(t *testing.T) syncstore.Store) {
	t.Run("GetAbsent", func(t *testing.T) {
		s := newStore(t)
		snap, err := s.Get(ctx(t), syncstore.GroupPath(freshGroup()))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if snap.Exists() {
			t.Errorf("expected absent value, got %#v", snap.Value)
		}
	})

	t.Run("SetRecordThenReadChildren", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		err := s.Set(c, syncstore.GroupPath(gid), map[string]any{
			"name":      "Event",
			"count":     0,
			"createdBy": "p1",
			"members":   map[string]bool{"p1": true},
		})
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		name, err := s.Get(c, syncstore.Join(syncstore.GroupPath(gid), "name"))
		if err != nil {
			t.Fatalf("Get name failed: %v", err)
		}
		if name.Value != "Event" {
			t.Errorf("name: got %#v, want %q", name.Value, "Event")
		}

		member, err := s.Get(c, syncstore.MemberPath(gid, "p1"))
		if err != nil {
			t.Fatalf("Get member failed: %v", err)
		}
		if member.Value != true {
			t.Errorf("member: got %#v, want true", member.Value)
		}

		count, err := s.Get(c, syncstore.CountPath(gid))
		if err != nil {
			t.Fatalf("Get count failed: %v", err)
		}
		// A zero count is a real value, not an absent one.
		if n, ok := count.Int64(); !ok || n != 0 {
			t.Errorf("count: got %#v, want 0", count.Value)
		}
	})

	t.Run("SetChildThenReadRecord", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		if err := s.Set(c, syncstore.GroupPath(gid), map[string]any{"name": "A", "count": 3}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := s.Set(c, syncstore.MemberPath(gid, "p2"), true); err != nil {
			t.Fatalf("Set member failed: %v", err)
		}

		snap, err := s.Get(c, syncstore.GroupPath(gid))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		rec, ok := snap.Value.(map[string]any)
		if !ok {
			t.Fatalf("expected object, got %#v", snap.Value)
		}
		if rec["name"] != "A" {
			t.Errorf("name: got %#v", rec["name"])
		}
		if n, _ := syncstore.AsInt64(rec["count"]); n != 3 {
			t.Errorf("count: got %#v, want 3", rec["count"])
		}
		members, _ := rec["members"].(map[string]any)
		if members["p2"] != true {
			t.Errorf("members: got %#v", rec["members"])
		}
	})

	t.Run("SetNilRemoves", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		if err := s.Set(c, syncstore.CountPath(gid), 5); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := s.Set(c, syncstore.CountPath(gid), nil); err != nil {
			t.Fatalf("Set nil failed: %v", err)
		}
		snap, err := s.Get(c, syncstore.CountPath(gid))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if snap.Exists() {
			t.Errorf("expected count removed, got %#v", snap.Value)
		}
	})

	t.Run("TransactAbsentStartsFromNil", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		var seen any = "unset"
		snap, err := s.Transact(c, syncstore.CountPath(gid), func(cur any) (any, error) {
			seen = cur
			return int64(7), nil
		})
		if err != nil {
			t.Fatalf("Transact failed: %v", err)
		}
		if seen != nil {
			t.Errorf("expected nil current value, got %#v", seen)
		}
		if n, _ := snap.Int64(); n != 7 {
			t.Errorf("committed: got %#v, want 7", snap.Value)
		}
	})

	t.Run("TransactAbortDoesNotWrite", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		if err := s.Set(c, syncstore.CountPath(gid), 4); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		errAbort := errors.New("abort")
		_, err := s.Transact(c, syncstore.CountPath(gid), func(cur any) (any, error) {
			return nil, errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("expected abort error, got %v", err)
		}
		snap, _ := s.Get(c, syncstore.CountPath(gid))
		if n, _ := snap.Int64(); n != 4 {
			t.Errorf("count changed after abort: %#v", snap.Value)
		}
	})

	t.Run("ConcurrentTransactionsLoseNothing", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		const workers, perWorker = 8, 10

		var g errgroup.Group
		for w := 0; w < workers; w++ {
			delta := int64(w + 1)
			g.Go(func() error {
				for i := 0; i < perWorker; i++ {
					_, err := syncstore.AtomicUpdate(c, s, syncstore.CountPath(gid), func(cur int64, _ bool) (int64, error) {
						return cur + delta, nil
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("concurrent updates failed: %v", err)
		}

		var want int64
		for w := 0; w < workers; w++ {
			want += int64(w+1) * perWorker
		}
		snap, err := s.Get(c, syncstore.CountPath(gid))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if n, _ := snap.Int64(); n != want {
			t.Errorf("count: got %#v, want %d", snap.Value, want)
		}
	})

	t.Run("SubscribeDeliversCurrentThenChanges", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		if err := s.Set(c, syncstore.GroupPath(gid), map[string]any{"name": "Live", "count": 1}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		sub, err := s.Subscribe(c, syncstore.GroupPath(gid))
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Cancel()

		first := Next(t, sub)
		if rec, _ := first.Value.(map[string]any); rec["name"] != "Live" {
			t.Errorf("initial snapshot: got %#v", first.Value)
		}

		if _, err := syncstore.AtomicUpdate(c, s, syncstore.CountPath(gid), func(cur int64, _ bool) (int64, error) { return cur + 1, nil }); err != nil {
			t.Fatalf("AtomicUpdate failed: %v", err)
		}
		second := Next(t, sub)
		rec, _ := second.Value.(map[string]any)
		if n, _ := syncstore.AsInt64(rec["count"]); n != 2 {
			t.Errorf("after increment: got %#v, want count 2", second.Value)
		}
	})

	t.Run("SubscribeAbsentEmitsNil", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		sub, err := s.Subscribe(c, syncstore.GroupPath(gid))
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Cancel()

		if snap := Next(t, sub); snap.Exists() {
			t.Errorf("expected absent initial snapshot, got %#v", snap.Value)
		}
		if err := s.Set(c, syncstore.CountPath(gid), 3); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if snap := Next(t, sub); !snap.Exists() {
			t.Error("expected a snapshot once the record appeared")
		}
	})

	t.Run("CancelClosesEvents", func(t *testing.T) {
		s := newStore(t)
		c := ctx(t)
		gid := freshGroup()
		sub, err := s.Subscribe(c, syncstore.CountPath(gid))
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		Next(t, sub)
		sub.Cancel()
		sub.Cancel()

		select {
		case _, ok := <-sub.Events():
			if ok {
				// A snapshot already queued may still drain; the channel
				// must close right after.
				if _, ok := <-sub.Events(); ok {
					t.Error("events still open after Cancel")
				}
			}
		case <-time.After(EventTimeout):
			t.Fatal("events not closed after Cancel")
		}
		if sub.Err() != nil {
			t.Errorf("Err after Cancel: got %v, want nil", sub.Err())
		}
	})
}
