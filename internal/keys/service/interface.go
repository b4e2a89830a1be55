// Package service provides the cryptographic primitives of the key pipeline:
// age X25519 keypairs for recipient encryption and KMS keepers sealing keys at rest.
package service

import (
	"context"
	"time"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
)

// Cipher wraps the asymmetric encryption primitive.
type Cipher interface {
	// Generate creates a new environment keypair.
	Generate() (*keysDomain.KeyPair, error)

	// GenerateRecovery creates a disposable keypair for one backup envelope.
	GenerateRecovery() (*keysDomain.RecoveryKeyPair, error)

	// Encrypt encrypts plaintext to recipient in the binary age format.
	Encrypt(recipient string, plaintext []byte) ([]byte, error)

	// EncryptArmored encrypts plaintext to recipient in the ASCII-armored age format.
	EncryptArmored(recipient string, plaintext []byte) ([]byte, error)

	// Decrypt decrypts binary or armored ciphertext with the identity text.
	Decrypt(identity, ciphertext []byte) ([]byte, error)

	// PublicKey derives the recipient of an identity. The identity may be a
	// bare "AGE-SECRET-KEY-1..." line or an age-keygen key file.
	PublicKey(identity []byte) (string, error)

	// ValidateRecipient checks that recipient is a well-formed public key.
	ValidateRecipient(recipient string) error

	// IdentityFile renders an identity in age-keygen key file format.
	IdentityFile(identity []byte, createdAt time.Time) ([]byte, error)
}

// Sealer encrypts small secrets under a KMS-held key.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens sealers for keeper URIs.
type KMSService interface {
	// OpenSealer opens a sealer for keyURI.
	// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
	OpenSealer(ctx context.Context, keyURI string) (Sealer, error)
}
