package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/tallyhub/internal/app/system/syncstore"
)

// ErrInjected is the error FaultyStore returns for failed operations.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a store and fails the operations switched on with Fail.
type FaultyStore struct {
	syncstore.Store

	mu    sync.Mutex
	fails map[string]bool
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner syncstore.Store) *FaultyStore {
	return &FaultyStore{Store: inner, fails: map[string]bool{}}
}

// Fail makes every later call to the named operations ("get", "set",
// "transact", "subscribe", "ping") return ErrInjected.
func (f *FaultyStore) Fail(ops ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range ops {
		f.fails[op] = true
	}
}

// Heal clears all injected failures.
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails = map[string]bool{}
}

func (f *FaultyStore) failing(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fails[op]
}

func (f *FaultyStore) Get(ctx context.Context, path string) (syncstore.Snapshot, error) {
	if f.failing("get") {
		return syncstore.Snapshot{}, ErrInjected
	}
	return f.Store.Get(ctx, path)
}

func (f *FaultyStore) Set(ctx context.Context, path string, value any) error {
	if f.failing("set") {
		return ErrInjected
	}
	return f.Store.Set(ctx, path, value)
}

func (f *FaultyStore) Transact(ctx context.Context, path string, fn syncstore.UpdateFunc) (syncstore.Snapshot, error) {
	if f.failing("transact") {
		return syncstore.Snapshot{}, ErrInjected
	}
	return f.Store.Transact(ctx, path, fn)
}

func (f *FaultyStore) Subscribe(ctx context.Context, path string) (*syncstore.Subscription, error) {
	if f.failing("subscribe") {
		return nil, ErrInjected
	}
	return f.Store.Subscribe(ctx, path)
}

func (f *FaultyStore) Ping(ctx context.Context) error {
	if f.failing("ping") {
		return ErrInjected
	}
	return f.Store.Ping(ctx)
}
