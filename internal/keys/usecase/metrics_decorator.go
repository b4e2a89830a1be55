package usecase

import (
	"context"
	"time"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	"github.com/bizmatters/zerotouch-keys/internal/metrics"
)

// keyLifecycleUseCaseWithMetrics decorates KeyLifecycleUseCase with metrics instrumentation.
type keyLifecycleUseCaseWithMetrics struct {
	next    KeyLifecycleUseCase
	metrics metrics.BusinessMetrics
}

// NewKeyLifecycleUseCaseWithMetrics wraps a KeyLifecycleUseCase with metrics recording.
func NewKeyLifecycleUseCaseWithMetrics(useCase KeyLifecycleUseCase, m metrics.BusinessMetrics) KeyLifecycleUseCase {
	return &keyLifecycleUseCaseWithMetrics{next: useCase, metrics: m}
}

func (k *keyLifecycleUseCaseWithMetrics) EnsureKeyPair(
	ctx context.Context,
	env keysDomain.Environment,
	opts EnsureOptions,
) (*keysDomain.KeyPair, error) {
	start := time.Now()
	pair, err := k.next.EnsureKeyPair(ctx, env, opts)
	metrics.Observe(ctx, k.metrics, metrics.DomainKeys, "key_ensure", start, err)
	return pair, err
}

func (k *keyLifecycleUseCaseWithMetrics) Rotate(ctx context.Context, env keysDomain.Environment) (*keysDomain.KeyPair, error) {
	start := time.Now()
	pair, err := k.next.Rotate(ctx, env)
	metrics.Observe(ctx, k.metrics, metrics.DomainKeys, "key_rotate", start, err)
	return pair, err
}

func (k *keyLifecycleUseCaseWithMetrics) BackupCurrent(
	ctx context.Context,
	env keysDomain.Environment,
) (*keysDomain.BackupRef, error) {
	start := time.Now()
	ref, err := k.next.BackupCurrent(ctx, env)
	metrics.Observe(ctx, k.metrics, metrics.DomainKeys, "key_backup_current", start, err)
	return ref, err
}

func (k *keyLifecycleUseCaseWithMetrics) PublicKey(ctx context.Context, env keysDomain.Environment) (string, error) {
	start := time.Now()
	publicKey, err := k.next.PublicKey(ctx, env)
	metrics.Observe(ctx, k.metrics, metrics.DomainKeys, "key_public_key", start, err)
	return publicKey, err
}

// backupVaultUseCaseWithMetrics decorates BackupVaultUseCase with metrics instrumentation.
type backupVaultUseCaseWithMetrics struct {
	next    BackupVaultUseCase
	metrics metrics.BusinessMetrics
}

// NewBackupVaultUseCaseWithMetrics wraps a BackupVaultUseCase with metrics recording.
func NewBackupVaultUseCaseWithMetrics(useCase BackupVaultUseCase, m metrics.BusinessMetrics) BackupVaultUseCase {
	return &backupVaultUseCaseWithMetrics{next: useCase, metrics: m}
}

func (b *backupVaultUseCaseWithMetrics) Backup(
	ctx context.Context,
	env keysDomain.Environment,
	primary []byte,
) (*keysDomain.BackupArtifact, error) {
	start := time.Now()
	artifact, err := b.next.Backup(ctx, env, primary)
	metrics.Observe(ctx, b.metrics, metrics.DomainBackup, "backup_write", start, err)
	return artifact, err
}

func (b *backupVaultUseCaseWithMetrics) List(ctx context.Context, env keysDomain.Environment) ([]keysDomain.BackupRef, error) {
	start := time.Now()
	refs, err := b.next.List(ctx, env)
	metrics.Observe(ctx, b.metrics, metrics.DomainBackup, "backup_list", start, err)
	return refs, err
}

func (b *backupVaultUseCaseWithMetrics) Load(
	ctx context.Context,
	env keysDomain.Environment,
	ts string,
) (*keysDomain.BackupArtifact, error) {
	start := time.Now()
	artifact, err := b.next.Load(ctx, env, ts)
	metrics.Observe(ctx, b.metrics, metrics.DomainBackup, "backup_load", start, err)
	return artifact, err
}

func (b *backupVaultUseCaseWithMetrics) Open(ctx context.Context, artifact *keysDomain.BackupArtifact) ([]byte, error) {
	start := time.Now()
	primary, err := b.next.Open(ctx, artifact)
	metrics.Observe(ctx, b.metrics, metrics.DomainBackup, "backup_open", start, err)
	return primary, err
}

// recoveryUseCaseWithMetrics decorates RecoveryUseCase with metrics instrumentation.
type recoveryUseCaseWithMetrics struct {
	next    RecoveryUseCase
	metrics metrics.BusinessMetrics
}

// NewRecoveryUseCaseWithMetrics wraps a RecoveryUseCase with metrics recording.
func NewRecoveryUseCaseWithMetrics(useCase RecoveryUseCase, m metrics.BusinessMetrics) RecoveryUseCase {
	return &recoveryUseCaseWithMetrics{next: useCase, metrics: m}
}

func (r *recoveryUseCaseWithMetrics) Recover(ctx context.Context, env keysDomain.Environment) (*RecoveryResult, error) {
	start := time.Now()
	result, err := r.next.Recover(ctx, env)
	metrics.Observe(ctx, r.metrics, metrics.DomainRecovery, "recover_active", start, err)
	return result, err
}

func (r *recoveryUseCaseWithMetrics) RecoverAt(
	ctx context.Context,
	env keysDomain.Environment,
	ts string,
) (*RecoveryResult, error) {
	start := time.Now()
	result, err := r.next.RecoverAt(ctx, env, ts)
	metrics.Observe(ctx, r.metrics, metrics.DomainRecovery, "recover_at", start, err)
	return result, err
}

func (r *recoveryUseCaseWithMetrics) BreakGlass(
	ctx context.Context,
	env keysDomain.Environment,
	privateKey []byte,
	opts BreakGlassOptions,
) (*RecoveryResult, error) {
	start := time.Now()
	result, err := r.next.BreakGlass(ctx, env, privateKey, opts)
	metrics.Observe(ctx, r.metrics, metrics.DomainRecovery, "recover_break_glass", start, err)
	return result, err
}
