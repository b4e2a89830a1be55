package service

import (
	"context"
	"fmt"

	"gocloud.dev/gcerrors"
	"gocloud.dev/secrets"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

type kmsService struct{}

// NewKMSService creates a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenSealer(ctx context.Context, keyURI string) (Sealer, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return NewKeeperSealer(keeper), nil
}

// keeperSealer adapts a *secrets.Keeper to Sealer.
type keeperSealer struct {
	keeper *secrets.Keeper
}

// NewKeeperSealer wraps an opened keeper.
func NewKeeperSealer(keeper *secrets.Keeper) Sealer {
	return &keeperSealer{keeper: keeper}
}

func (s *keeperSealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	ciphertext, err := s.keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal: %w", classifyKeeperError(err))
	}
	return ciphertext, nil
}

func (s *keeperSealer) Open(ctx context.Context, ciphertext []byte) ([]byte, error) {
	plaintext, err := s.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal: %w", classifyKeeperError(err))
	}
	return plaintext, nil
}

func (s *keeperSealer) Close() error {
	return s.keeper.Close()
}

// classifyKeeperError tags keeper failures that retrying cannot fix.
func classifyKeeperError(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.InvalidArgument, gcerrors.FailedPrecondition:
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	case gcerrors.PermissionDenied:
		return fmt.Errorf("%w: %w", apperrors.ErrForbidden, err)
	case gcerrors.NotFound:
		return fmt.Errorf("%w: %w", apperrors.ErrNotFound, err)
	default:
		return err
	}
}
