// Package repository persists key material: the sealed primary key in the
// object store and the per-environment recipient in the encryption-rule file.
package repository

import (
	"context"
	"fmt"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

// SealedKeyStore keeps private keys sealed by a KMS keeper inside an ObjectStore.
// Plaintext key material never reaches the bucket.
type SealedKeyStore struct {
	objects storage.ObjectStore
	sealer  keysService.Sealer
}

// NewSealedKeyStore creates a SealedKeyStore.
func NewSealedKeyStore(objects storage.ObjectStore, sealer keysService.Sealer) *SealedKeyStore {
	return &SealedKeyStore{objects: objects, sealer: sealer}
}

func (s *SealedKeyStore) Exists(ctx context.Context, env keysDomain.Environment) (bool, error) {
	ok, err := s.objects.Exists(ctx, keysDomain.SealedKeyObject(env))
	if err != nil {
		return false, storageError(env, err)
	}
	return ok, nil
}

func (s *SealedKeyStore) Fetch(ctx context.Context, env keysDomain.Environment) ([]byte, error) {
	sealed, err := s.objects.Read(ctx, keysDomain.SealedKeyObject(env))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", env, keysDomain.ErrKeyNotFound)
		}
		return nil, storageError(env, err)
	}
	privateKey, err := s.sealer.Open(ctx, sealed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", env, keysDomain.ErrStorageUnavailable, err)
	}
	return privateKey, nil
}

func (s *SealedKeyStore) Store(ctx context.Context, env keysDomain.Environment, privateKey []byte) error {
	sealed, err := s.sealer.Seal(ctx, privateKey)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", env, keysDomain.ErrStorageUnavailable, err)
	}
	if err := s.objects.Write(ctx, keysDomain.SealedKeyObject(env), sealed); err != nil {
		return storageError(env, err)
	}
	return nil
}

func storageError(env keysDomain.Environment, err error) error {
	return fmt.Errorf("%s: %w: %w", env, keysDomain.ErrStorageUnavailable, err)
}
