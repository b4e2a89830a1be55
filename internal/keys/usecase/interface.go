// Package usecase defines the interfaces and implementations of the key
// lifecycle: generate-or-fetch, envelope backups and recovery into the live
// decryption context.
package usecase

import (
	"context"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
)

// KeyStore is the remote home of each environment's primary private key.
type KeyStore interface {
	Exists(ctx context.Context, env keysDomain.Environment) (bool, error)
	Fetch(ctx context.Context, env keysDomain.Environment) ([]byte, error)
	Store(ctx context.Context, env keysDomain.Environment, privateKey []byte) error
}

// RecipientConfig is the per-environment recipient record of the encryption rules.
type RecipientConfig interface {
	RecipientFor(env keysDomain.Environment) (recipient string, ok bool, err error)
	SetRecipient(env keysDomain.Environment, recipient string) error
}

// LiveContext reads and replaces the key of the runtime decryption context.
type LiveContext interface {
	Current(ctx context.Context, env string) (key []byte, ok bool, err error)
	Inject(ctx context.Context, env string, key []byte) error
	Describe(env string) string
}

// AuditRecorder persists signed break-glass records.
type AuditRecorder interface {
	Write(ctx context.Context, key []byte, rec *audit.Record) error
}

// EnsureOptions tunes EnsureKeyPair.
type EnsureOptions struct {
	// Adopt records the stored key's recipient when the configuration has none.
	Adopt bool
}

// KeyLifecycleUseCase produces and guards the per-environment keypair.
type KeyLifecycleUseCase interface {
	// EnsureKeyPair returns the active keypair of env, generating and backing
	// up a new one only when neither the key store nor the configuration knows one.
	//
	// Security Note: callers MUST call Zero on the returned KeyPair after use.
	EnsureKeyPair(ctx context.Context, env keysDomain.Environment, opts EnsureOptions) (*keysDomain.KeyPair, error)

	// Rotate replaces the active keypair of env. Artifacts encrypted to the
	// previous recipient must be regenerated afterwards.
	Rotate(ctx context.Context, env keysDomain.Environment) (*keysDomain.KeyPair, error)

	// BackupCurrent writes a fresh envelope backup of the existing key of env.
	BackupCurrent(ctx context.Context, env keysDomain.Environment) (*keysDomain.BackupRef, error)

	// PublicKey returns the validated recipient of env.
	PublicKey(ctx context.Context, env keysDomain.Environment) (string, error)
}

// BackupVaultUseCase writes and reads envelope backups.
type BackupVaultUseCase interface {
	// Backup envelopes primary under a fresh recovery keypair and writes the
	// timestamped and ACTIVE copies. Any failed write fails the whole call.
	//
	// Security Note: callers MUST call Zero on the returned artifact.
	Backup(ctx context.Context, env keysDomain.Environment, primary []byte) (*keysDomain.BackupArtifact, error)

	// List returns the timestamped backups of env, newest first.
	List(ctx context.Context, env keysDomain.Environment) ([]keysDomain.BackupRef, error)

	// Load reads the backup at ts (a timestamp or keysDomain.ActiveTimestamp).
	Load(ctx context.Context, env keysDomain.Environment, ts string) (*keysDomain.BackupArtifact, error)

	// Open decrypts the primary private key held by artifact.
	Open(ctx context.Context, artifact *keysDomain.BackupArtifact) ([]byte, error)
}

// BreakGlassOptions tunes BreakGlass.
type BreakGlassOptions struct {
	// SelfTest runs an encrypt/decrypt round trip with the key before injecting it.
	SelfTest bool
	Operator string
	Reason   string
}

// RecoveryResult describes a completed recovery.
type RecoveryResult struct {
	Environment keysDomain.Environment
	PublicKey   string
	// Source is the backup timestamp, keysDomain.ActiveTimestamp or "break-glass".
	Source string
	Target string
	// PreviousBackup is the break-glass backup timestamp of the replaced live key, if any.
	PreviousBackup string
	AuditID        string
}

// RecoveryUseCase restores keys into the live decryption context.
type RecoveryUseCase interface {
	// Recover restores the ACTIVE backup of env.
	Recover(ctx context.Context, env keysDomain.Environment) (*RecoveryResult, error)
	// RecoverAt restores the backup taken at ts.
	RecoverAt(ctx context.Context, env keysDomain.Environment, ts string) (*RecoveryResult, error)
	// BreakGlass injects an operator-supplied key.
	BreakGlass(
		ctx context.Context,
		env keysDomain.Environment,
		privateKey []byte,
		opts BreakGlassOptions,
	) (*RecoveryResult, error)
}
