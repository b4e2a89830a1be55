package usecase

import (
	"context"
	"time"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	"github.com/bizmatters/zerotouch-keys/internal/metrics"
)

// secretEncryptionUseCaseWithMetrics decorates SecretEncryptionUseCase with metrics instrumentation.
type secretEncryptionUseCaseWithMetrics struct {
	next    SecretEncryptionUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretEncryptionUseCaseWithMetrics wraps a SecretEncryptionUseCase with metrics recording.
func NewSecretEncryptionUseCaseWithMetrics(
	useCase SecretEncryptionUseCase,
	m metrics.BusinessMetrics,
) SecretEncryptionUseCase {
	return &secretEncryptionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Regenerate records metrics for single-environment regeneration.
func (s *secretEncryptionUseCaseWithMetrics) Regenerate(
	ctx context.Context,
	env keysDomain.Environment,
	values []mapping.SourceValue,
) (*RegenerateResult, error) {
	start := time.Now()
	result, err := s.next.Regenerate(ctx, env, values)
	metrics.Observe(ctx, s.metrics, metrics.DomainSecrets, "secrets_regenerate", start, err)
	return result, err
}

// RegenerateAll records one observation for the whole batch. Regenerate is
// called on the undecorated use case, so environments are not counted twice.
func (s *secretEncryptionUseCaseWithMetrics) RegenerateAll(
	ctx context.Context,
	envs []keysDomain.Environment,
	values []mapping.SourceValue,
) ([]*RegenerateResult, error) {
	start := time.Now()
	results, err := s.next.RegenerateAll(ctx, envs, values)
	metrics.Observe(ctx, s.metrics, metrics.DomainSecrets, "secrets_regenerate_all", start, err)
	return results, err
}

// Decrypt records metrics for artifact decryption.
func (s *secretEncryptionUseCaseWithMetrics) Decrypt(
	ctx context.Context,
	artifact, identity []byte,
) (*mapping.SecretRecord, error) {
	start := time.Now()
	rec, err := s.next.Decrypt(ctx, artifact, identity)
	metrics.Observe(ctx, s.metrics, metrics.DomainSecrets, "secrets_decrypt", start, err)
	return rec, err
}

// Verify records metrics for artifact set verification.
func (s *secretEncryptionUseCaseWithMetrics) Verify(
	ctx context.Context,
	env keysDomain.Environment,
) (*VerifyResult, error) {
	start := time.Now()
	result, err := s.next.Verify(ctx, env)
	metrics.Observe(ctx, s.metrics, metrics.DomainSecrets, "secrets_verify", start, err)
	return result, err
}
