package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Timeout:         time.Second,
	}
}

func TestRunner_Do(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := NewRunner(fastPolicy(3)).Do(context.Background(), "put", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection reset")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted attempts are unavailable", func(t *testing.T) {
		calls := 0
		err := NewRunner(fastPolicy(2)).Do(context.Background(), "put", func(ctx context.Context) error {
			calls++
			return errors.New("connection reset")
		})
		require.Error(t, err)
		assert.Equal(t, 2, calls)
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Contains(t, err.Error(), "put failed after 2 attempts")
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		calls := 0
		err := NewRunner(fastPolicy(5)).Do(context.Background(), "get", func(ctx context.Context) error {
			calls++
			return Permanent(apperrors.ErrNotFound)
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NotErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Equal(t, 1, calls)
	})

	t.Run("each attempt carries a deadline", func(t *testing.T) {
		err := NewRunner(fastPolicy(1)).Do(context.Background(), "get", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := NewRunner(fastPolicy(10)).Do(ctx, "list", func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("timeout")
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		err := NewRunner(Policy{}).Do(context.Background(), "get", func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("rate limited runner", func(t *testing.T) {
		p := fastPolicy(1)
		p.RatePerSec = 1000
		p.Burst = 2
		r := NewRunner(p)
		for i := 0; i < 3; i++ {
			require.NoError(t, r.Do(context.Background(), "get", func(ctx context.Context) error { return nil }))
		}
	})
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
