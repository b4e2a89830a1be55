package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	"github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

func TestBackupVaultUseCase_Backup(t *testing.T) {
	ctx := context.Background()
	cipher := keysService.NewAgeCipher()

	t.Run("Success_RoundTrip", func(t *testing.T) {
		objects := newMemStore(t)
		vault := usecase.NewBackupVaultUseCase(objects, cipher, nil, discardLogger(), newStepClock().Now)

		primary, err := cipher.Generate()
		require.NoError(t, err)

		artifact, err := vault.Backup(ctx, "dev", primary.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, "20260314-090001", artifact.Timestamp)
		assert.True(t, strings.HasPrefix(string(artifact.Ciphertext), "-----BEGIN AGE ENCRYPTED FILE-----"))

		decrypted, err := cipher.Decrypt(artifact.RecoveryPrivateKey, artifact.Ciphertext)
		require.NoError(t, err)
		assert.Equal(t, primary.PrivateKey, decrypted)

		for _, key := range []string{
			"dev/age-keys/20260314-090001-age-key-encrypted.txt",
			"dev/age-keys/20260314-090001-recovery-key.txt",
			"dev/age-keys/ACTIVE-age-key-encrypted.txt",
			"dev/age-keys/ACTIVE-recovery-key.txt",
		} {
			ok, err := objects.Exists(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, key)
		}

		for _, ts := range []string{artifact.Timestamp, keysDomain.ActiveTimestamp} {
			loaded, err := vault.Load(ctx, "dev", ts)
			require.NoError(t, err)
			opened, err := vault.Open(ctx, loaded)
			require.NoError(t, err)
			assert.Equal(t, primary.PrivateKey, opened, ts)
		}
	})

	t.Run("Success_FreshRecoveryKeyPerBackup", func(t *testing.T) {
		objects := newMemStore(t)
		vault := usecase.NewBackupVaultUseCase(objects, cipher, nil, discardLogger(), newStepClock().Now)

		first, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
		require.NoError(t, err)
		second, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
		require.NoError(t, err)
		assert.NotEqual(t, first.RecoveryPrivateKey, second.RecoveryPrivateKey)

		active, err := vault.Load(ctx, "dev", keysDomain.ActiveTimestamp)
		require.NoError(t, err)
		assert.Equal(t, second.Ciphertext, active.Ciphertext)
	})

	t.Run("Success_SealedRecoveryKey", func(t *testing.T) {
		objects := newMemStore(t)
		sealer := newTestSealer(t)
		vault := usecase.NewBackupVaultUseCase(objects, cipher, sealer, discardLogger(), newStepClock().Now)

		primary, err := cipher.Generate()
		require.NoError(t, err)
		_, err = vault.Backup(ctx, "prod", primary.PrivateKey)
		require.NoError(t, err)

		raw, err := objects.Read(ctx, keysDomain.RecoveryKeyObject("prod", keysDomain.ActiveTimestamp))
		require.NoError(t, err)
		assert.True(t, keysDomain.IsSealedRecoveryKey(raw))
		assert.NotContains(t, string(raw), "AGE-SECRET-KEY-1")

		loaded, err := vault.Load(ctx, "prod", keysDomain.ActiveTimestamp)
		require.NoError(t, err)
		opened, err := vault.Open(ctx, loaded)
		require.NoError(t, err)
		assert.Equal(t, primary.PrivateKey, opened)

		// Without the recovery keeper the bucket alone does not open the backup.
		unsealed := usecase.NewBackupVaultUseCase(objects, cipher, nil, discardLogger(), nil)
		_, err = unsealed.Load(ctx, "prod", keysDomain.ActiveTimestamp)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Success_SameSecondGetsPreciseTimestamp", func(t *testing.T) {
		objects := newMemStore(t)
		now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		vault := usecase.NewBackupVaultUseCase(objects, cipher, nil, discardLogger(), func() time.Time { return now })

		first, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
		require.NoError(t, err)
		now = now.Add(250 * time.Millisecond)
		second, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1B"))
		require.NoError(t, err)

		assert.Equal(t, "20260314-090000", first.Timestamp)
		assert.Equal(t, "20260314-090000.250", second.Timestamp)

		refs, err := vault.List(ctx, "dev")
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, second.Timestamp, refs[0].Timestamp)
		assert.True(t, now.Equal(refs[0].CreatedAt))

		loaded, err := vault.Load(ctx, "dev", second.Timestamp)
		require.NoError(t, err)
		opened, err := vault.Open(ctx, loaded)
		require.NoError(t, err)
		assert.Equal(t, []byte("AGE-SECRET-KEY-1B"), opened)

		active, err := vault.Load(ctx, "dev", keysDomain.ActiveTimestamp)
		require.NoError(t, err)
		assert.Equal(t, second.Ciphertext, active.Ciphertext)
	})

	t.Run("Error_TimestampCollision", func(t *testing.T) {
		objects := newMemStore(t)
		fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		vault := usecase.NewBackupVaultUseCase(objects, cipher, nil, discardLogger(), func() time.Time { return fixed })

		_, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
		require.NoError(t, err)
		_, err = vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1B"))
		require.NoError(t, err)
		_, err = vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1C"))
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Error_PartialWrite", func(t *testing.T) {
		flaky := &flakyStore{ObjectStore: newMemStore(t), failOnWrite: 3}
		vault := usecase.NewBackupVaultUseCase(flaky, cipher, nil, discardLogger(), newStepClock().Now)

		artifact, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
		assert.Nil(t, artifact)
		assert.ErrorIs(t, err, keysDomain.ErrBackupIncomplete)
		assert.ErrorContains(t, err, "2 of 4 writes completed")
		assert.NotContains(t, err.Error(), "--timestamp")
	})

	t.Run("Error_ActiveWriteFailureNamesTimestampedBackup", func(t *testing.T) {
		objects := newMemStore(t)
		clock := newStepClock()
		_, err := usecase.NewBackupVaultUseCase(objects, cipher, nil, discardLogger(), clock.Now).
			Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1OLD"))
		require.NoError(t, err)

		flaky := &flakyStore{ObjectStore: objects, failOnWrite: 4}
		vault := usecase.NewBackupVaultUseCase(flaky, cipher, nil, discardLogger(), clock.Now)

		_, backupErr := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1NEW"))
		assert.ErrorIs(t, backupErr, keysDomain.ErrBackupIncomplete)
		assert.ErrorContains(t, backupErr, "3 of 4 writes completed, ACTIVE may be inconsistent")

		refs, err := vault.List(ctx, "dev")
		require.NoError(t, err)
		require.Len(t, refs, 2)
		fallback := refs[0].Timestamp
		assert.ErrorContains(t, backupErr, "recover --env dev --timestamp "+fallback)

		loaded, err := vault.Load(ctx, "dev", fallback)
		require.NoError(t, err)
		opened, err := vault.Open(ctx, loaded)
		require.NoError(t, err)
		assert.Equal(t, []byte("AGE-SECRET-KEY-1NEW"), opened)

		// ACTIVE now holds the new ciphertext next to the previous recovery key.
		active, err := vault.Load(ctx, "dev", keysDomain.ActiveTimestamp)
		require.NoError(t, err)
		_, err = vault.Open(ctx, active)
		assert.ErrorIs(t, err, keysDomain.ErrRecoveryValidation)
	})
}

func TestBackupVaultUseCase_List(t *testing.T) {
	ctx := context.Background()
	objects := newMemStore(t)
	vault := usecase.NewBackupVaultUseCase(objects, keysService.NewAgeCipher(), nil, discardLogger(), newStepClock().Now)

	refs, err := vault.List(ctx, "dev")
	require.NoError(t, err)
	assert.Empty(t, refs)

	for range 3 {
		_, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
		require.NoError(t, err)
	}
	_, err = vault.Backup(ctx, "prod", []byte("AGE-SECRET-KEY-1A"))
	require.NoError(t, err)
	require.NoError(t, objects.Write(ctx, "dev/age-keys/notes.txt", []byte("x")))

	refs, err = vault.List(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "20260314-090003", refs[0].Timestamp)
	assert.Equal(t, "20260314-090002", refs[1].Timestamp)
	assert.Equal(t, "20260314-090001", refs[2].Timestamp)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 0, 3, 0, time.UTC), refs[0].CreatedAt)
}

func TestBackupVaultUseCase_Load(t *testing.T) {
	ctx := context.Background()
	vault := usecase.NewBackupVaultUseCase(newMemStore(t), keysService.NewAgeCipher(), nil, discardLogger(), nil)

	_, err := vault.Load(ctx, "dev", keysDomain.ActiveTimestamp)
	assert.ErrorIs(t, err, keysDomain.ErrBackupNotFound)

	_, err = vault.Load(ctx, "dev", "20260101-000000")
	assert.ErrorIs(t, err, keysDomain.ErrBackupNotFound)

	_, err = vault.Load(ctx, "dev", "yesterday")
	assert.ErrorIs(t, err, keysDomain.ErrBackupNotFound)
}

func TestBackupVaultUseCase_Open_WrongRecoveryKey(t *testing.T) {
	ctx := context.Background()
	cipher := keysService.NewAgeCipher()
	vault := usecase.NewBackupVaultUseCase(newMemStore(t), cipher, nil, discardLogger(), newStepClock().Now)

	artifact, err := vault.Backup(ctx, "dev", []byte("AGE-SECRET-KEY-1A"))
	require.NoError(t, err)

	other, err := cipher.GenerateRecovery()
	require.NoError(t, err)
	artifact.RecoveryPrivateKey = other.PrivateKey

	_, err = vault.Open(ctx, artifact)
	assert.ErrorIs(t, err, keysDomain.ErrRecoveryValidation)
}
