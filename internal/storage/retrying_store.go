package storage

import (
	"context"

	"github.com/bizmatters/zerotouch-keys/internal/retry"
)

// retryingStore runs every call of the wrapped store under one retry policy.
// Not-found, permission and validation failures are returned immediately.
type retryingStore struct {
	next   ObjectStore
	runner *retry.Runner
}

// WithRetry decorates store with runner.
func WithRetry(store ObjectStore, runner *retry.Runner) ObjectStore {
	return &retryingStore{next: store, runner: runner}
}

func (r *retryingStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return r.runner.Do(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (r *retryingStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := r.do(ctx, "stat "+key, func(ctx context.Context) error {
		var err error
		ok, err = r.next.Exists(ctx, key)
		return err
	})
	return ok, err
}

func (r *retryingStore) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "read "+key, func(ctx context.Context) error {
		var err error
		data, err = r.next.Read(ctx, key)
		return err
	})
	return data, err
}

func (r *retryingStore) Write(ctx context.Context, key string, data []byte) error {
	return r.do(ctx, "write "+key, func(ctx context.Context) error {
		return r.next.Write(ctx, key, data)
	})
}

func (r *retryingStore) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete "+key, func(ctx context.Context) error {
		return r.next.Delete(ctx, key)
	})
}

func (r *retryingStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := r.do(ctx, "list "+prefix, func(ctx context.Context) error {
		var err error
		keys, err = r.next.List(ctx, prefix)
		return err
	})
	return keys, err
}

func (r *retryingStore) Close() error {
	return r.next.Close()
}
