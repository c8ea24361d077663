package counterstore

import (
	"sync"

	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
	"github.com/dalemusser/tallyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Feed projects the snapshots of one group subscription onto GroupViews.
// Absent snapshots are skipped, so the view keeps whatever it last showed
// (the default view until the group first appears).
type Feed struct {
	sub    *syncstore.Subscription
	events chan models.GroupView
	log    *zap.Logger

	mu      sync.Mutex
	current models.GroupView
}

// NewFeed starts projecting sub. Tests can drive it with a subscription
// built by syncstore.NewSubscription and fed through Publish.
func NewFeed(sub *syncstore.Subscription, logger *zap.Logger) *Feed {
	f := &Feed{
		sub:     sub,
		events:  make(chan models.GroupView),
		log:     logger,
		current: models.DefaultGroupView(),
	}
	go f.run()
	return f
}

// Events delivers one view per non-absent snapshot. It is closed when the
// feed ends.
func (f *Feed) Events() <-chan models.GroupView { return f.events }

// Current returns the last view delivered, or the default view.
func (f *Feed) Current() models.GroupView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Cancel tears the feed down and detaches the underlying listener.
func (f *Feed) Cancel() { f.sub.Cancel() }

// Done is closed once the feed has been cancelled or has failed.
func (f *Feed) Done() <-chan struct{} { return f.sub.Done() }

// Err returns the store error that ended the feed, if any.
func (f *Feed) Err() error { return f.sub.Err() }

func (f *Feed) run() {
	defer close(f.events)
	for snap := range f.sub.Events() {
		view, ok := viewOf(snap.Value)
		if !ok {
			continue
		}

		f.mu.Lock()
		f.current = view
		f.mu.Unlock()

		select {
		case f.events <- view:
		case <-f.sub.Done():
			return
		}
	}
	if err := f.sub.Err(); err != nil {
		f.log.Warn("group feed ended", zap.Error(err))
	}
}

// viewOf reads the rendered fields out of a raw group record. Fields of the
// wrong type fall back to their defaults.
func viewOf(v any) (models.GroupView, bool) {
	rec, ok := v.(map[string]any)
	if !ok {
		return models.GroupView{}, false
	}
	name, _ := syncstore.As[string](rec["name"])
	count, _ := syncstore.AsInt64(rec["count"])
	owner, _ := syncstore.As[string](rec["createdBy"])
	return models.Group{Name: name, Count: count, CreatedBy: owner}.View(), true
}
