package syncstore

import (
	"reflect"
	"sync"

	"github.com/gammazero/deque"
)

// Subscription is a standing listener on one path. Snapshots are queued per
// subscriber, so a slow reader never blocks writers and never misses a
// change. Events is closed once the subscription ends.
type Subscription struct {
	path   string
	events chan Snapshot

	mu      sync.Mutex
	queue   *deque.Deque[Snapshot]
	last    any
	hasLast bool
	err     error

	wake     chan struct{}
	done     chan struct{}
	once     sync.Once
	onCancel func()
}

// NewSubscription creates a subscription for path. onCancel runs once when
// the subscription ends; backends use it to detach their listener.
func NewSubscription(path string, onCancel func()) *Subscription {
	s := &Subscription{
		path:     Join(path),
		events:   make(chan Snapshot),
		queue:    new(deque.Deque[Snapshot]),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		onCancel: onCancel,
	}
	go s.pump()
	return s
}

// Path returns the subscribed path.
func (s *Subscription) Path() string { return s.path }

// Events delivers snapshots in commit order.
func (s *Subscription) Events() <-chan Snapshot { return s.events }

// Done is closed when the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the subscription, or nil if it is still
// open or was cancelled by its owner.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Publish queues the value for delivery. A value equal to the last one
// published is skipped. It reports whether the value was queued.
func (s *Subscription) Publish(v any) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.mu.Lock()
	if s.hasLast && reflect.DeepEqual(s.last, v) {
		s.mu.Unlock()
		return false
	}
	s.last, s.hasLast = v, true
	s.queue.PushBack(Snapshot{Path: s.path, Value: v})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Cancel ends the subscription and detaches it from its backend. It is safe
// to call more than once.
func (s *Subscription) Cancel() {
	s.fail(nil)
}

// Fail ends the subscription with a terminal error.
func (s *Subscription) Fail(err error) {
	s.fail(err)
}

func (s *Subscription) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		if s.onCancel != nil {
			s.onCancel()
		}
	})
}

func (s *Subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue.PopFront()
		s.mu.Unlock()

		select {
		case s.events <- next:
		case <-s.done:
			return
		}
	}
}
