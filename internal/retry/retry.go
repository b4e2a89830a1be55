// Package retry runs remote calls under one bounded retry policy.
//
// Every call gets its own timeout, a capped exponential backoff between
// attempts and an optional client-side rate limit. Errors marked with
// Permanent are returned at once; exhausting the attempts returns the last
// error wrapped with ErrUnavailable so callers treat it as a hard failure.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

// Policy configures how a remote call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialInterval is the wait before the second attempt.
	InitialInterval time.Duration
	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration
	// Timeout bounds each individual attempt. Zero disables the per-attempt timeout.
	Timeout time.Duration
	// RatePerSec throttles attempts issued through the same Runner. Zero disables throttling.
	RatePerSec float64
	// Burst is the throttle burst size.
	Burst int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Timeout:         30 * time.Second,
	}
}

// Runner executes operations under a Policy.
type Runner struct {
	policy  Policy
	limiter *rate.Limiter
}

// NewRunner creates a Runner for the given policy.
func NewRunner(policy Policy) *Runner {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	r := &Runner{policy: policy}
	if policy.RatePerSec > 0 {
		burst := policy.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(policy.RatePerSec), burst)
	}
	return r
}

// Policy returns the policy the runner was built with.
func (r *Runner) Policy() Policy {
	return r.policy
}

// Do runs fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. op names the call in the returned error.
func (r *Runner) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1))
	policy = backoff.WithContext(policy, ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		callCtx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}
		return fn(callCtx)
	}, policy)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if apperrors.As(err, &perm) {
		return perm.Err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrUnavailable, ctx.Err())
	}
	return fmt.Errorf("%s failed after %d attempts: %w: %w", op, attempts, apperrors.ErrUnavailable, err)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
