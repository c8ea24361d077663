package syncstore

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func recv(t *testing.T, s *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-s.Events():
		if !ok {
			t.Fatal("events closed")
		}
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return Snapshot{}
}

func TestSubscription_OrderAndDedupe(t *testing.T) {
	s := NewSubscription("groups/g1/count", nil)
	defer s.Cancel()

	for _, v := range []any{int64(1), int64(1), int64(2), int64(1)} {
		s.Publish(v)
	}

	for _, want := range []int64{1, 2, 1} {
		snap := recv(t, s)
		if n, _ := snap.Int64(); n != want {
			t.Fatalf("got %#v, want %d", snap.Value, want)
		}
		if snap.Path != "groups/g1/count" {
			t.Errorf("path: got %q", snap.Path)
		}
	}
}

func TestSubscription_CancelRunsHookOnce(t *testing.T) {
	var calls atomic.Int32
	s := NewSubscription("groups/g1", func() { calls.Add(1) })

	s.Cancel()
	s.Cancel()
	s.Fail(errors.New("late"))

	if n := calls.Load(); n != 1 {
		t.Errorf("onCancel ran %d times", n)
	}
	if s.Err() != nil {
		t.Errorf("Err after Cancel: %v", s.Err())
	}
	if s.Publish(int64(1)) {
		t.Error("Publish after Cancel should be refused")
	}
	if _, ok := <-s.Events(); ok {
		t.Error("expected events closed")
	}
}

func TestSubscription_Fail(t *testing.T) {
	boom := errors.New("boom")
	s := NewSubscription("groups/g1", nil)
	s.Fail(boom)

	<-s.Done()
	if !errors.Is(s.Err(), boom) {
		t.Errorf("Err: got %v", s.Err())
	}
}
