// Package usecase defines the interfaces and implementations of the secret
// encryption engine: full regeneration of an environment's encrypted
// artifact set and its verification against the active key.
package usecase

import (
	"context"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUsecase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
)

// KeyProvider yields the active keypair of an environment.
type KeyProvider interface {
	PublicKey(ctx context.Context, env keysDomain.Environment) (string, error)
	EnsureKeyPair(
		ctx context.Context,
		env keysDomain.Environment,
		opts keysUsecase.EnsureOptions,
	) (*keysDomain.KeyPair, error)
}

// Classifier routes source values into secret records.
type Classifier interface {
	Classify(values []mapping.SourceValue, env keysDomain.Environment) (*mapping.Result, error)
	Namespace(env keysDomain.Environment) string
}

// RegenerateResult describes one regenerated environment.
type RegenerateResult struct {
	Environment keysDomain.Environment
	Recipient   string
	// Dir is the environment directory that now holds the artifacts.
	Dir string
	// Files are the artifact paths relative to Dir, as listed by the manifest.
	Files      []string
	Rejections []mapping.Rejection
}

// VerifyResult describes a verified environment.
type VerifyResult struct {
	Environment keysDomain.Environment
	Recipient   string
	Files       []string
}

// SecretEncryptionUseCase produces and checks encrypted artifact sets.
type SecretEncryptionUseCase interface {
	// Regenerate replaces the artifact set of env with one rendered from
	// values. The previous set stays untouched if any step fails.
	Regenerate(ctx context.Context, env keysDomain.Environment, values []mapping.SourceValue) (*RegenerateResult, error)

	// RegenerateAll regenerates several environments in parallel. Every
	// environment is attempted; failures are aggregated.
	RegenerateAll(
		ctx context.Context,
		envs []keysDomain.Environment,
		values []mapping.SourceValue,
	) ([]*RegenerateResult, error)

	// Decrypt decrypts one artifact with identity.
	Decrypt(ctx context.Context, artifact, identity []byte) (*mapping.SecretRecord, error)

	// Verify decrypts every artifact listed in the manifest of env with the
	// active key and checks that the directory holds no unlisted artifact.
	Verify(ctx context.Context, env keysDomain.Environment) (*VerifyResult, error)
}
