package livecontext

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/bizmatters/zerotouch-keys/internal/retry"
)

// retryingInjector runs Current and Inject under one retry policy so an
// unresponsive API server or parameter store fails the recovery.
type retryingInjector struct {
	next   Injector
	runner *retry.Runner
}

// WithRetry decorates injector with runner.
func WithRetry(injector Injector, runner *retry.Runner) Injector {
	return &retryingInjector{next: injector, runner: runner}
}

func (r *retryingInjector) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return r.runner.Do(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (r *retryingInjector) Current(ctx context.Context, env string) ([]byte, bool, error) {
	var (
		key []byte
		ok  bool
	)
	err := r.do(ctx, "read "+r.next.Describe(env), func(ctx context.Context) error {
		var err error
		key, ok, err = r.next.Current(ctx, env)
		return err
	})
	return key, ok, err
}

func (r *retryingInjector) Inject(ctx context.Context, env string, key []byte) error {
	return r.do(ctx, "inject "+r.next.Describe(env), func(ctx context.Context) error {
		return r.next.Inject(ctx, env, key)
	})
}

func (r *retryingInjector) Describe(env string) string {
	return r.next.Describe(env)
}

// isPermanent reports API server rejections that a retry cannot fix.
func isPermanent(err error) bool {
	return apierrors.IsForbidden(err) ||
		apierrors.IsUnauthorized(err) ||
		apierrors.IsInvalid(err) ||
		apierrors.IsBadRequest(err)
}
