package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	"github.com/bizmatters/zerotouch-keys/internal/keys/repository"
	"github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	usecaseMocks "github.com/bizmatters/zerotouch-keys/internal/keys/usecase/mocks"
)

func TestKeyLifecycleUseCase_EnsureKeyPair(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_FirstGenerationBacksUpStoresAndRecords", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		assert.Contains(t, pair.PublicKey, "age1")

		stored, err := f.keyStore.Fetch(ctx, "dev")
		require.NoError(t, err)
		assert.Equal(t, pair.PrivateKey, stored)

		recipient, ok, err := f.recipients.RecipientFor("dev")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, pair.PublicKey, recipient)

		refs, err := f.vault.List(ctx, "dev")
		require.NoError(t, err)
		require.Len(t, refs, 1)

		artifact, err := f.vault.Load(ctx, "dev", keysDomain.ActiveTimestamp)
		require.NoError(t, err)
		primary, err := f.vault.Open(ctx, artifact)
		require.NoError(t, err)
		assert.Equal(t, pair.PrivateKey, primary)
	})

	t.Run("Success_Idempotent", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		second, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// A fresh process fetches instead of generating.
		third, err := f.newLifecycle().EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, first, third)

		refs, err := f.vault.List(ctx, "dev")
		require.NoError(t, err)
		assert.Len(t, refs, 1)
	})

	t.Run("Success_ReturnedPairIsACopy", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		want := append([]byte(nil), first.PrivateKey...)
		first.Zero()

		second, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		assert.Equal(t, want, second.PrivateKey)
	})

	t.Run("Success_EnvironmentsAreIndependent", func(t *testing.T) {
		f := newFixture(t)

		dev, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)
		prod, err := f.lifecycle.EnsureKeyPair(ctx, "prod", usecase.EnsureOptions{})
		require.NoError(t, err)
		assert.NotEqual(t, dev.PublicKey, prod.PublicKey)
	})

	t.Run("Error_ConfigurationDrift", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)

		other, err := f.cipher.Generate()
		require.NoError(t, err)
		require.NoError(t, f.recipients.SetRecipient("dev", other.PublicKey))

		_, err = f.newLifecycle().EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		assert.ErrorIs(t, err, keysDomain.ErrConfigurationDrift)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Error_StoredKeyWithoutRecipient", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.cipher.Generate()
		require.NoError(t, err)
		require.NoError(t, f.keyStore.Store(ctx, "staging", pair.PrivateKey))

		_, err = f.lifecycle.EnsureKeyPair(ctx, "staging", usecase.EnsureOptions{})
		assert.ErrorIs(t, err, keysDomain.ErrRecipientNotConfigured)

		_, ok, err := f.recipients.RecipientFor("staging")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Success_AdoptRecordsStoredRecipient", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.cipher.Generate()
		require.NoError(t, err)
		require.NoError(t, f.keyStore.Store(ctx, "staging", pair.PrivateKey))

		adopted, err := f.lifecycle.EnsureKeyPair(ctx, "staging", usecase.EnsureOptions{Adopt: true})
		require.NoError(t, err)
		assert.Equal(t, pair.PublicKey, adopted.PublicKey)

		recipient, ok, err := f.recipients.RecipientFor("staging")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, pair.PublicKey, recipient)

		refs, err := f.vault.List(ctx, "staging")
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("Error_RecipientWithoutStoredKey", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.cipher.Generate()
		require.NoError(t, err)
		require.NoError(t, f.recipients.SetRecipient("prod", pair.PublicKey))

		_, err = f.lifecycle.EnsureKeyPair(ctx, "prod", usecase.EnsureOptions{})
		assert.ErrorIs(t, err, keysDomain.ErrKeyNotFound)

		exists, err := f.keyStore.Exists(ctx, "prod")
		require.NoError(t, err)
		assert.False(t, exists)

		refs, err := f.vault.List(ctx, "prod")
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("Error_BackupFailureLeavesNothingBehind", func(t *testing.T) {
		for failOn := 1; failOn <= 4; failOn++ {
			f := newFixture(t)
			flaky := &flakyStore{ObjectStore: f.objects, failOnWrite: failOn}
			vault := usecase.NewBackupVaultUseCase(flaky, f.cipher, nil, discardLogger(), f.clock.Now)
			lifecycle := usecase.NewKeyLifecycleUseCase(f.keyStore, f.recipients, vault, f.cipher, discardLogger())

			_, err := lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
			assert.ErrorIs(t, err, keysDomain.ErrBackupIncomplete, "write %d", failOn)

			exists, err := f.keyStore.Exists(ctx, "dev")
			require.NoError(t, err)
			assert.False(t, exists, "write %d", failOn)

			_, ok, err := f.recipients.RecipientFor("dev")
			require.NoError(t, err)
			assert.False(t, ok, "write %d", failOn)
		}
	})

	t.Run("Error_InvalidEnvironment", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.lifecycle.EnsureKeyPair(ctx, "Dev_1", usecase.EnsureOptions{})
		assert.ErrorIs(t, err, keysDomain.ErrInvalidEnvironment)
	})
}

func TestKeyLifecycleUseCase_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")

	keyStore := usecaseMocks.NewMockKeyStore(t)
	recipients := usecaseMocks.NewMockRecipientConfig(t)
	vault := usecaseMocks.NewMockBackupVaultUseCase(t)

	recipients.On("RecipientFor", keysDomain.Environment("dev")).Return("", false, nil).Once()
	keyStore.On("Exists", ctx, keysDomain.Environment("dev")).Return(false, storeErr).Once()

	lifecycle := usecase.NewKeyLifecycleUseCase(keyStore, recipients, vault, nil, discardLogger())
	_, err := lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
	assert.ErrorIs(t, err, storeErr)

	// Nothing is generated or backed up when the store cannot be reached.
	vault.AssertNotCalled(t, "Backup", mock.Anything, mock.Anything, mock.Anything)
	keyStore.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
}

func TestKeyLifecycleUseCase_Rotate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	original, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
	require.NoError(t, err)

	rotated, err := f.lifecycle.Rotate(ctx, "dev")
	require.NoError(t, err)
	assert.NotEqual(t, original.PublicKey, rotated.PublicKey)

	recipient, _, err := f.recipients.RecipientFor("dev")
	require.NoError(t, err)
	assert.Equal(t, rotated.PublicKey, recipient)

	current, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, rotated.PublicKey, current.PublicKey)

	refs, err := f.vault.List(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	// The historical backup still opens to the original key.
	oldest, err := f.vault.Load(ctx, "dev", refs[1].Timestamp)
	require.NoError(t, err)
	primary, err := f.vault.Open(ctx, oldest)
	require.NoError(t, err)
	assert.Equal(t, original.PrivateKey, primary)

	active, err := f.vault.Load(ctx, "dev", keysDomain.ActiveTimestamp)
	require.NoError(t, err)
	primary, err = f.vault.Open(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, rotated.PrivateKey, primary)
}

func TestKeyLifecycleUseCase_BackupCurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_NoKey", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.lifecycle.BackupCurrent(ctx, "dev")
		assert.ErrorIs(t, err, keysDomain.ErrKeyNotFound)

		refs, err := f.vault.List(ctx, "dev")
		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)

		pair, err := f.lifecycle.EnsureKeyPair(ctx, "dev", usecase.EnsureOptions{})
		require.NoError(t, err)

		ref, err := f.lifecycle.BackupCurrent(ctx, "dev")
		require.NoError(t, err)
		assert.Equal(t, keysDomain.Environment("dev"), ref.Environment)

		refs, err := f.vault.List(ctx, "dev")
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, ref.Timestamp, refs[0].Timestamp)

		artifact, err := f.vault.Load(ctx, "dev", ref.Timestamp)
		require.NoError(t, err)
		primary, err := f.vault.Open(ctx, artifact)
		require.NoError(t, err)
		assert.Equal(t, pair.PrivateKey, primary)
	})
}

func TestKeyLifecycleUseCase_PublicKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	publicKey, err := f.lifecycle.PublicKey(ctx, "dev")
	require.NoError(t, err)

	recipient, ok, err := f.recipients.RecipientFor("dev")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recipient, publicKey)

	rule, ok, err := f.recipients.Rule("dev")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, repository.DefaultEncryptedRegex, rule.EncryptedRegex)
}
