package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
)

// SourceBreakGlass is the RecoveryResult.Source of an operator-supplied key.
const SourceBreakGlass = "break-glass"

var selfTestMessage = []byte("zerotouch-keys self-test")

type recoveryUseCase struct {
	vault           BackupVaultUseCase
	breakGlassVault BackupVaultUseCase
	recipients      RecipientConfig
	cipher          keysService.Cipher
	live            LiveContext
	auditor         AuditRecorder
	logger          *slog.Logger
	clock           func() time.Time
}

// NewRecoveryUseCase creates a RecoveryUseCase.
//
// vault holds the backups written by the key lifecycle. breakGlassVault
// receives envelopes of live keys replaced by BreakGlass and is usually a
// local bucket, because the break-glass path exists for when the remote
// store is unreachable.
func NewRecoveryUseCase(
	vault BackupVaultUseCase,
	breakGlassVault BackupVaultUseCase,
	recipients RecipientConfig,
	cipher keysService.Cipher,
	live LiveContext,
	auditor AuditRecorder,
	logger *slog.Logger,
	clock func() time.Time,
) RecoveryUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &recoveryUseCase{
		vault:           vault,
		breakGlassVault: breakGlassVault,
		recipients:      recipients,
		cipher:          cipher,
		live:            live,
		auditor:         auditor,
		logger:          logger,
		clock:           clock,
	}
}

func (r *recoveryUseCase) Recover(ctx context.Context, env keysDomain.Environment) (*RecoveryResult, error) {
	return r.RecoverAt(ctx, env, keysDomain.ActiveTimestamp)
}

// RecoverAt decrypts the backup at ts and injects it only after the derived
// recipient matches the configured one.
func (r *recoveryUseCase) RecoverAt(
	ctx context.Context,
	env keysDomain.Environment,
	ts string,
) (*RecoveryResult, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	configured, ok, err := r.recipients.RecipientFor(env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: no recipient to validate the recovered key against: %w",
			env, keysDomain.ErrRecipientNotConfigured)
	}

	artifact, err := r.vault.Load(ctx, env, ts)
	if err != nil {
		return nil, err
	}
	defer artifact.Zero()

	primary, err := r.vault.Open(ctx, artifact)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(primary)

	publicKey, err := r.cipher.PublicKey(primary)
	if err != nil {
		return nil, fmt.Errorf("%s: backup %s: %w: %w", env, ts, keysDomain.ErrRecoveryValidation, err)
	}
	if publicKey != configured {
		return nil, fmt.Errorf("%s: backup %s derives %s, configured %s: %w",
			env, ts, publicKey, configured, keysDomain.ErrRecoveryValidation)
	}

	if err := r.inject(ctx, env, primary); err != nil {
		return nil, err
	}

	r.logger.Info("key recovered",
		slog.String("environment", env.String()),
		slog.String("backup", ts),
		slog.String("public_key", publicKey),
		slog.String("target", r.live.Describe(env.String())),
	)
	return &RecoveryResult{
		Environment: env,
		PublicKey:   publicKey,
		Source:      ts,
		Target:      r.live.Describe(env.String()),
	}, nil
}

// BreakGlass injects an operator-supplied key.
//
// Order: validate the key, compare with the configured recipient, run the
// optional self-test, back up the live key it replaces, write the signed
// audit record, then inject. Nothing is injected when any earlier step fails.
func (r *recoveryUseCase) BreakGlass(
	ctx context.Context,
	env keysDomain.Environment,
	privateKey []byte,
	opts BreakGlassOptions,
) (*RecoveryResult, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	publicKey, err := r.cipher.PublicKey(privateKey)
	if err != nil {
		return nil, err
	}

	configured, ok, err := r.recipients.RecipientFor(env)
	if err != nil {
		return nil, err
	}
	if ok && configured != publicKey {
		return nil, fmt.Errorf("%s: supplied key derives %s, configured %s: %w",
			env, publicKey, configured, keysDomain.ErrRecoveryValidation)
	}
	if !ok {
		r.logger.Warn("no recipient configured; supplied key cannot be validated against configuration",
			slog.String("environment", env.String()),
			slog.String("public_key", publicKey),
		)
	}

	if opts.SelfTest {
		if err := r.selfTest(publicKey, privateKey); err != nil {
			return nil, fmt.Errorf("%s: %w", env, err)
		}
	}

	rec := &audit.Record{
		Environment: env.String(),
		Action:      audit.ActionBreakGlass,
		Operator:    opts.Operator,
		Reason:      opts.Reason,
		PublicKey:   publicKey,
		SelfTest:    opts.SelfTest,
	}

	previous, hasPrevious, err := r.live.Current(ctx, env.String())
	if err != nil {
		return nil, err
	}
	if hasPrevious {
		prevPublicKey, perr := r.cipher.PublicKey(previous)
		if perr == nil {
			rec.PreviousPublicKey = prevPublicKey
		}
		if perr != nil || prevPublicKey != publicKey {
			artifact, err := r.breakGlassVault.Backup(ctx, env, previous)
			if err != nil {
				keysDomain.Zero(previous)
				return nil, fmt.Errorf("%s: previous live key not backed up: %w", env, err)
			}
			rec.PreviousBackup = artifact.Timestamp
			artifact.Zero()
		}
		keysDomain.Zero(previous)
	}

	if err := r.auditor.Write(ctx, privateKey, rec); err != nil {
		return nil, err
	}

	if err := r.inject(ctx, env, privateKey); err != nil {
		return nil, err
	}

	target := r.live.Describe(env.String())
	r.logger.Warn("break-glass key injected",
		slog.Bool("audit", true),
		slog.String("audit_id", rec.ID.String()),
		slog.String("environment", env.String()),
		slog.String("operator", opts.Operator),
		slog.String("public_key", publicKey),
		slog.String("previous_public_key", rec.PreviousPublicKey),
		slog.String("previous_backup", rec.PreviousBackup),
		slog.Bool("self_test", opts.SelfTest),
		slog.String("target", target),
	)

	return &RecoveryResult{
		Environment:    env,
		PublicKey:      publicKey,
		Source:         SourceBreakGlass,
		Target:         target,
		PreviousBackup: rec.PreviousBackup,
		AuditID:        rec.ID.String(),
	}, nil
}

func (r *recoveryUseCase) selfTest(publicKey string, privateKey []byte) error {
	ciphertext, err := r.cipher.Encrypt(publicKey, selfTestMessage)
	if err != nil {
		return fmt.Errorf("%w: %w", keysDomain.ErrSelfTestFailed, err)
	}
	plaintext, err := r.cipher.Decrypt(privateKey, ciphertext)
	if err != nil {
		return fmt.Errorf("%w: %w", keysDomain.ErrSelfTestFailed, err)
	}
	if !bytes.Equal(plaintext, selfTestMessage) {
		return fmt.Errorf("%w: round trip mismatch", keysDomain.ErrSelfTestFailed)
	}
	return nil
}

// inject writes privateKey into the live context in key file format.
func (r *recoveryUseCase) inject(ctx context.Context, env keysDomain.Environment, privateKey []byte) error {
	keyFile, err := r.cipher.IdentityFile(privateKey, r.clock())
	if err != nil {
		return err
	}
	defer keysDomain.Zero(keyFile)

	if err := r.live.Inject(ctx, env.String(), keyFile); err != nil {
		return fmt.Errorf("%s: failed to inject key into %s: %w", env, r.live.Describe(env.String()), err)
	}
	return nil
}
