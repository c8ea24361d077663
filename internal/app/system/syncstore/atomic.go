package syncstore

import "context"

// AtomicUpdate is a typed wrapper over Store.Transact. fn receives the
// current value converted to T and whether it was present and convertible;
// absent or mistyped values arrive as the zero value. An error from fn
// aborts the transaction without writing and is returned as is.
func AtomicUpdate[T any](ctx context.Context, s Store, path string, fn func(cur T, ok bool) (T, error)) (T, error) {
	snap, err := s.Transact(ctx, path, func(current any) (any, error) {
		cur, ok := As[T](current)
		return fn(cur, ok)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := As[T](snap.Value)
	return out, nil
}
