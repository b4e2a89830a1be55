package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

type backupVaultUseCase struct {
	objects        storage.ObjectStore
	cipher         keysService.Cipher
	recoverySealer keysService.Sealer
	logger         *slog.Logger
	clock          func() time.Time
}

// NewBackupVaultUseCase creates a BackupVaultUseCase writing into objects.
// When recoverySealer is not nil the recovery private key is sealed by it
// before upload, so reading the bucket alone is not enough to open a backup.
func NewBackupVaultUseCase(
	objects storage.ObjectStore,
	cipher keysService.Cipher,
	recoverySealer keysService.Sealer,
	logger *slog.Logger,
	clock func() time.Time,
) BackupVaultUseCase {
	if clock == nil {
		clock = time.Now
	}
	return &backupVaultUseCase{
		objects:        objects,
		cipher:         cipher,
		recoverySealer: recoverySealer,
		logger:         logger,
		clock:          clock,
	}
}

func (v *backupVaultUseCase) Backup(
	ctx context.Context,
	env keysDomain.Environment,
	primary []byte,
) (*keysDomain.BackupArtifact, error) {
	now := v.clock().UTC()
	ts, err := v.reserveTimestamp(ctx, env, now)
	if err != nil {
		return nil, err
	}

	recovery, err := v.cipher.GenerateRecovery()
	if err != nil {
		return nil, err
	}
	defer recovery.Zero()

	ciphertext, err := v.cipher.EncryptArmored(recovery.PublicKey, primary)
	if err != nil {
		return nil, err
	}
	recoveryFile, err := v.cipher.IdentityFile(recovery.PrivateKey, now)
	if err != nil {
		return nil, err
	}

	stored := recoveryFile
	if v.recoverySealer != nil {
		stored, err = v.sealRecoveryKey(ctx, recoveryFile)
		if err != nil {
			keysDomain.Zero(recoveryFile)
			return nil, fmt.Errorf("%s: %w: %w", env, keysDomain.ErrBackupIncomplete, err)
		}
	}

	writes := []struct {
		key  string
		data []byte
	}{
		{keysDomain.CiphertextObject(env, ts), ciphertext},
		{keysDomain.RecoveryKeyObject(env, ts), stored},
		{keysDomain.CiphertextObject(env, keysDomain.ActiveTimestamp), ciphertext},
		{keysDomain.RecoveryKeyObject(env, keysDomain.ActiveTimestamp), stored},
	}
	for i, w := range writes {
		if err := v.objects.Write(ctx, w.key, w.data); err != nil {
			keysDomain.Zero(recoveryFile)
			v.logger.Error("backup write failed",
				slog.String("environment", env.String()),
				slog.String("object", w.key),
				slog.Int("completed_writes", i),
				slog.Any("error", err),
			)
			if i < 2 {
				return nil, fmt.Errorf("%s: %d of %d writes completed: %w: %w",
					env, i, len(writes), keysDomain.ErrBackupIncomplete, err)
			}
			// The timestamped pair is whole but ACTIVE may pair this ciphertext
			// with the previous recovery key.
			return nil, fmt.Errorf("%s: %d of %d writes completed, ACTIVE may be inconsistent; "+
				"backup %s is complete (recover --env %s --timestamp %s): %w: %w",
				env, i, len(writes), ts, env, ts, keysDomain.ErrBackupIncomplete, err)
		}
	}

	v.logger.Info("key backup written",
		slog.String("environment", env.String()),
		slog.String("timestamp", ts),
		slog.String("recovery_recipient", recovery.PublicKey),
		slog.Bool("recovery_key_sealed", v.recoverySealer != nil),
	)

	return &keysDomain.BackupArtifact{
		Environment:        env,
		Timestamp:          ts,
		Ciphertext:         ciphertext,
		RecoveryPrivateKey: recoveryFile,
	}, nil
}

// reserveTimestamp picks the backup timestamp for now. A second that already
// holds a backup gets a millisecond-precision timestamp instead.
func (v *backupVaultUseCase) reserveTimestamp(
	ctx context.Context,
	env keysDomain.Environment,
	now time.Time,
) (string, error) {
	for _, ts := range []string{keysDomain.FormatTimestamp(now), keysDomain.FormatPreciseTimestamp(now)} {
		taken, err := v.objects.Exists(ctx, keysDomain.CiphertextObject(env, ts))
		if err != nil {
			return "", fmt.Errorf("%s: %w: %w", env, keysDomain.ErrBackupIncomplete, err)
		}
		if !taken {
			return ts, nil
		}
	}
	return "", fmt.Errorf("%s: backup %s already exists: %w",
		env, keysDomain.FormatPreciseTimestamp(now), apperrors.ErrConflict)
}

func (v *backupVaultUseCase) List(ctx context.Context, env keysDomain.Environment) ([]keysDomain.BackupRef, error) {
	keys, err := v.objects.List(ctx, keysDomain.KeyDir(env))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", env, keysDomain.ErrStorageUnavailable, err)
	}

	var refs []keysDomain.BackupRef
	for _, key := range keys {
		ts, ok := keysDomain.ParseCiphertextObject(env, key)
		if !ok {
			continue
		}
		createdAt, err := keysDomain.ParseTimestamp(ts)
		if err != nil {
			continue
		}
		refs = append(refs, keysDomain.BackupRef{Environment: env, Timestamp: ts, CreatedAt: createdAt})
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Timestamp > refs[j].Timestamp
	})
	return refs, nil
}

func (v *backupVaultUseCase) Load(
	ctx context.Context,
	env keysDomain.Environment,
	ts string,
) (*keysDomain.BackupArtifact, error) {
	if ts != keysDomain.ActiveTimestamp {
		if _, err := keysDomain.ParseTimestamp(ts); err != nil {
			return nil, err
		}
	}

	ciphertext, err := v.read(ctx, env, ts, keysDomain.CiphertextObject(env, ts))
	if err != nil {
		return nil, err
	}
	recoveryKey, err := v.read(ctx, env, ts, keysDomain.RecoveryKeyObject(env, ts))
	if err != nil {
		return nil, err
	}

	if keysDomain.IsSealedRecoveryKey(recoveryKey) {
		recoveryKey, err = v.openRecoveryKey(ctx, recoveryKey)
		if err != nil {
			return nil, fmt.Errorf("%s: backup %s: %w", env, ts, err)
		}
	}

	return &keysDomain.BackupArtifact{
		Environment:        env,
		Timestamp:          ts,
		Ciphertext:         ciphertext,
		RecoveryPrivateKey: recoveryKey,
	}, nil
}

func (v *backupVaultUseCase) Open(ctx context.Context, artifact *keysDomain.BackupArtifact) ([]byte, error) {
	primary, err := v.cipher.Decrypt(artifact.RecoveryPrivateKey, artifact.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%s: backup %s: %w: %w",
			artifact.Environment, artifact.Timestamp, keysDomain.ErrRecoveryValidation, err)
	}
	return bytes.TrimSpace(primary), nil
}

func (v *backupVaultUseCase) read(ctx context.Context, env keysDomain.Environment, ts, key string) ([]byte, error) {
	data, err := v.objects.Read(ctx, key)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s: backup %s: %w", env, ts, keysDomain.ErrBackupNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %w", env, keysDomain.ErrStorageUnavailable, err)
	}
	return data, nil
}

func (v *backupVaultUseCase) sealRecoveryKey(ctx context.Context, recoveryFile []byte) ([]byte, error) {
	sealed, err := v.recoverySealer.Seal(ctx, recoveryFile)
	if err != nil {
		return nil, err
	}
	return []byte(keysDomain.SealedRecoveryHeader() + base64.StdEncoding.EncodeToString(sealed) + "\n"), nil
}

func (v *backupVaultUseCase) openRecoveryKey(ctx context.Context, stored []byte) ([]byte, error) {
	if v.recoverySealer == nil {
		return nil, fmt.Errorf("recovery key is sealed but no recovery keeper is configured: %w",
			apperrors.ErrInvalidInput)
	}
	body := bytes.TrimPrefix(stored, []byte(keysDomain.SealedRecoveryHeader()))
	sealed, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, fmt.Errorf("malformed sealed recovery key: %w", apperrors.ErrInvalidInput)
	}
	return v.recoverySealer.Open(ctx, sealed)
}
