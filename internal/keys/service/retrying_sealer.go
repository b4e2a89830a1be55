package service

import (
	"context"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	"github.com/bizmatters/zerotouch-keys/internal/retry"
)

// retryingSealer runs every keeper call under one retry policy, so a hung
// KMS endpoint fails the operation once the per-call timeout expires.
type retryingSealer struct {
	next   Sealer
	runner *retry.Runner
}

// WithRetry decorates sealer with runner.
func WithRetry(sealer Sealer, runner *retry.Runner) Sealer {
	return &retryingSealer{next: sealer, runner: runner}
}

func (r *retryingSealer) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return r.runner.Do(ctx, op, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (r *retryingSealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	var ciphertext []byte
	err := r.do(ctx, "kms seal", func(ctx context.Context) error {
		var err error
		ciphertext, err = r.next.Seal(ctx, plaintext)
		return err
	})
	return ciphertext, err
}

func (r *retryingSealer) Open(ctx context.Context, ciphertext []byte) ([]byte, error) {
	var plaintext []byte
	err := r.do(ctx, "kms open", func(ctx context.Context) error {
		var err error
		plaintext, err = r.next.Open(ctx, ciphertext)
		return err
	})
	return plaintext, err
}

func (r *retryingSealer) Close() error {
	return r.next.Close()
}

func isPermanent(err error) bool {
	return apperrors.Is(err, apperrors.ErrInvalidInput) ||
		apperrors.Is(err, apperrors.ErrForbidden) ||
		apperrors.Is(err, apperrors.ErrUnauthorized) ||
		apperrors.Is(err, apperrors.ErrNotFound)
}
