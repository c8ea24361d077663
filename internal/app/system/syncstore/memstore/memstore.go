// Package memstore is an in-process synchronized store. The whole tree sits
// behind one mutex, so every transaction is trivially serialized against all
// other writers. It backs store_backend=memory and the fast test suites.
package memstore

import (
	"context"
	"sync"

	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
)

// Store is a key tree held in memory.
type Store struct {
	mu   sync.Mutex
	root map[string]any
	subs map[*syncstore.Subscription]struct{}
}

var _ syncstore.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		root: map[string]any{},
		subs: map[*syncstore.Subscription]struct{}{},
	}
}

func (s *Store) Get(ctx context.Context, path string) (syncstore.Snapshot, error) {
	if err := syncstore.Validate(path); err != nil {
		return syncstore.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return syncstore.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return syncstore.Snapshot{Path: syncstore.Join(path), Value: s.read(path)}, nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := syncstore.Validate(path); err != nil {
		return err
	}
	v, err := syncstore.Normalize(value)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(path, v)
	return nil
}

func (s *Store) Transact(ctx context.Context, path string, fn syncstore.UpdateFunc) (syncstore.Snapshot, error) {
	if err := syncstore.Validate(path); err != nil {
		return syncstore.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return syncstore.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.read(path))
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	v, err := syncstore.Normalize(next)
	if err != nil {
		return syncstore.Snapshot{}, err
	}
	s.write(path, v)
	return syncstore.Snapshot{Path: syncstore.Join(path), Value: syncstore.Clone(v)}, nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (*syncstore.Subscription, error) {
	if err := syncstore.Validate(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sub *syncstore.Subscription
	sub = syncstore.NewSubscription(path, func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.Publish(s.read(path))
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
	}()
	return sub, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Subscribers returns the number of open subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// read returns a private copy of the value at path. Caller holds s.mu.
func (s *Store) read(path string) any {
	return syncstore.Clone(syncstore.Lookup(s.root, syncstore.Split(path)))
}

// write replaces the subtree at path and notifies every subscriber whose
// value may have changed. Caller holds s.mu.
func (s *Store) write(path string, v any) {
	segs := syncstore.Split(path)
	if v == nil {
		remove(s.root, segs)
	} else {
		place(s.root, segs, syncstore.Clone(v))
	}
	for sub := range s.subs {
		if syncstore.Related(sub.Path(), path) {
			sub.Publish(s.read(sub.Path()))
		}
	}
}

func place(root map[string]any, segs []string, v any) {
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// remove deletes the value at segs and prunes parents left empty.
func remove(node map[string]any, segs []string) bool {
	if len(segs) == 1 {
		delete(node, segs[0])
		return len(node) == 0
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		return len(node) == 0
	}
	if remove(child, segs[1:]) {
		delete(node, segs[0])
	}
	return len(node) == 0
}
