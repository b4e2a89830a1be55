package livecontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	"github.com/bizmatters/zerotouch-keys/internal/retry"
)

// stalledSSM never answers until the caller gives up.
type stalledSSM struct{}

func (stalledSSM) GetParameter(ctx context.Context, _ *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledSSM) PutParameter(ctx context.Context, _ *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testRunner(attempts int) *retry.Runner {
	return retry.NewRunner(retry.Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Timeout:         50 * time.Millisecond,
	})
}

func TestRetryingInjector(t *testing.T) {
	ctx := context.Background()

	t.Run("stalled backend times out", func(t *testing.T) {
		inj := WithRetry(NewSSMInjector(stalledSSM{}, "/p", ""), testRunner(2))

		start := time.Now()
		_, _, err := inj.Current(ctx, "dev")
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		err = inj.Inject(ctx, "dev", []byte(testKey))
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("transient errors are retried", func(t *testing.T) {
		client := &fakeSSM{Err: errors.New("throttled")}
		inj := WithRetry(NewSSMInjector(client, "/p", ""), testRunner(3))

		err := inj.Inject(ctx, "dev", []byte(testKey))
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.ErrorContains(t, err, "failed after 3 attempts")
	})

	t.Run("forbidden is returned at once", func(t *testing.T) {
		client := fake.NewSimpleClientset()
		calls := 0
		client.PrependReactor("get", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
			calls++
			return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "secrets"}, "sops-age", errors.New("rbac"))
		})
		inj := WithRetry(NewKubernetesInjector(client, "argocd", "sops-age", "keys.txt"), testRunner(3))

		_, _, err := inj.Current(ctx, "dev")
		assert.True(t, apierrors.IsForbidden(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("success passes through", func(t *testing.T) {
		inj := WithRetry(NewSSMInjector(&fakeSSM{}, "/p", ""), testRunner(1))
		require.NoError(t, inj.Inject(ctx, "dev", []byte(testKey)))

		current, ok, err := inj.Current(ctx, "dev")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte(testKey), current)
		assert.Equal(t, "ssm:/p/dev", inj.Describe("dev"))
	})
}
