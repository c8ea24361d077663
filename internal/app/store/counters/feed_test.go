package counterstore_test

import (
	"errors"
	"testing"
	"time"

	counterstore "github.com/dalemusser/tallyhub/internal/app/store/counters"
	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"go.uber.org/zap"
)

func TestFeed_ScriptedSnapshots(t *testing.T) {
	sub := syncstore.NewSubscription(syncstore.GroupPath("g1"), nil)
	feed := counterstore.NewFeed(sub, zap.NewNop())
	defer feed.Cancel()

	if got := feed.Current(); got != models.DefaultGroupView() {
		t.Fatalf("initial view: got %+v", got)
	}

	script := []any{
		nil,
		map[string]any{"name": "Event", "count": int64(0), "createdBy": "X"},
		nil,
		map[string]any{"name": "Event", "count": int64(10), "createdBy": "X"},
		map[string]any{"count": int64(11), "createdBy": "X"},
		map[string]any{"name": "Event", "count": "garbage"},
	}
	for _, v := range script {
		sub.Publish(v)
	}

	want := []models.GroupView{
		{Name: "Event", Count: 0, Owner: "X"},
		{Name: "Event", Count: 10, Owner: "X"},
		{Name: "Counter", Count: 11, Owner: "X"},
		{Name: "Event", Count: 0},
	}
	for i, w := range want {
		if got := nextView(t, feed); got != w {
			t.Errorf("view %d: got %+v, want %+v", i, got, w)
		}
	}
	if got := feed.Current(); got != want[len(want)-1] {
		t.Errorf("Current: got %+v, want %+v", got, want[len(want)-1])
	}
}

func TestFeed_FailureEndsFeed(t *testing.T) {
	sub := syncstore.NewSubscription(syncstore.GroupPath("g1"), nil)
	feed := counterstore.NewFeed(sub, zap.NewNop())

	boom := errors.New("stream lost")
	sub.Fail(boom)

	select {
	case _, ok := <-feed.Events():
		if ok {
			t.Fatal("expected feed to close")
		}
	case <-time.After(time.Second):
		t.Fatal("feed not closed after failure")
	}
	if !errors.Is(feed.Err(), boom) {
		t.Errorf("Err: got %v, want %v", feed.Err(), boom)
	}
}
