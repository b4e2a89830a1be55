package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
)

// keyLifecycleUseCase implements KeyLifecycleUseCase.
//
// The state machine per environment is Unknown -> (fetch | generate) -> Active.
// A stored key is never regenerated implicitly: a missing key with an existing
// recipient record or a stored key whose recipient differs from the record are
// both fatal. Active keypairs are cached for the lifetime of the process so
// repeated calls are no-ops.
type keyLifecycleUseCase struct {
	store      KeyStore
	recipients RecipientConfig
	vault      BackupVaultUseCase
	cipher     keysService.Cipher
	logger     *slog.Logger

	mu     sync.Mutex
	locks  map[keysDomain.Environment]*sync.Mutex
	active map[keysDomain.Environment]*keysDomain.KeyPair
}

// NewKeyLifecycleUseCase creates a new KeyLifecycleUseCase.
func NewKeyLifecycleUseCase(
	store KeyStore,
	recipients RecipientConfig,
	vault BackupVaultUseCase,
	cipher keysService.Cipher,
	logger *slog.Logger,
) KeyLifecycleUseCase {
	return &keyLifecycleUseCase{
		store:      store,
		recipients: recipients,
		vault:      vault,
		cipher:     cipher,
		logger:     logger,
		locks:      make(map[keysDomain.Environment]*sync.Mutex),
		active:     make(map[keysDomain.Environment]*keysDomain.KeyPair),
	}
}

// lock serializes work on one environment while leaving others independent.
func (k *keyLifecycleUseCase) lock(env keysDomain.Environment) func() {
	k.mu.Lock()
	l, ok := k.locks[env]
	if !ok {
		l = &sync.Mutex{}
		k.locks[env] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (k *keyLifecycleUseCase) cached(env keysDomain.Environment) (*keysDomain.KeyPair, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pair, ok := k.active[env]
	if !ok {
		return nil, false
	}
	return clonePair(pair), true
}

func (k *keyLifecycleUseCase) remember(env keysDomain.Environment, pair *keysDomain.KeyPair) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if old, ok := k.active[env]; ok {
		old.Zero()
	}
	k.active[env] = clonePair(pair)
}

// EnsureKeyPair returns the active keypair of env.
//
// Outcomes by state of the key store and the encryption-rule configuration:
//   - key stored, recipient recorded: the derived recipient must equal the
//     recorded one, otherwise ErrConfigurationDrift
//   - key stored, no recipient: ErrRecipientNotConfigured unless opts.Adopt,
//     which records the derived recipient
//   - no key, recipient recorded: ErrKeyNotFound; existing ciphertext would
//     be orphaned by a new key, so recovery or explicit rotation is required
//   - no key, no recipient: generate, back up, store, record the recipient
func (k *keyLifecycleUseCase) EnsureKeyPair(
	ctx context.Context,
	env keysDomain.Environment,
	opts EnsureOptions,
) (*keysDomain.KeyPair, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	unlock := k.lock(env)
	defer unlock()

	if pair, ok := k.cached(env); ok {
		return pair, nil
	}

	configured, hasRecipient, err := k.recipients.RecipientFor(env)
	if err != nil {
		return nil, err
	}

	exists, err := k.store.Exists(ctx, env)
	if err != nil {
		return nil, err
	}

	var pair *keysDomain.KeyPair
	switch {
	case exists:
		pair, err = k.fetch(ctx, env, configured, hasRecipient, opts.Adopt)
	case hasRecipient:
		return nil, fmt.Errorf(
			"%s: encryption rules name recipient %s but the key store is empty: %w",
			env, configured, keysDomain.ErrKeyNotFound,
		)
	default:
		pair, err = k.generate(ctx, env)
	}
	if err != nil {
		return nil, err
	}

	k.remember(env, pair)
	return pair, nil
}

// fetch loads the stored key of env and checks it against the recipient record.
func (k *keyLifecycleUseCase) fetch(
	ctx context.Context,
	env keysDomain.Environment,
	configured string,
	hasRecipient bool,
	adopt bool,
) (*keysDomain.KeyPair, error) {
	privateKey, err := k.store.Fetch(ctx, env)
	if err != nil {
		return nil, err
	}

	publicKey, err := k.cipher.PublicKey(privateKey)
	if err != nil {
		keysDomain.Zero(privateKey)
		return nil, fmt.Errorf("%s: stored key: %w", env, err)
	}

	if !hasRecipient {
		if !adopt {
			keysDomain.Zero(privateKey)
			return nil, fmt.Errorf("%s: stored key %s has no recipient record: %w",
				env, publicKey, keysDomain.ErrRecipientNotConfigured)
		}
		if err := k.recipients.SetRecipient(env, publicKey); err != nil {
			keysDomain.Zero(privateKey)
			return nil, err
		}
		k.logger.Info("adopted stored key",
			slog.String("environment", env.String()),
			slog.String("public_key", publicKey),
		)
	} else if configured != publicKey {
		keysDomain.Zero(privateKey)
		return nil, fmt.Errorf("%s: configured recipient %s, stored key derives %s: %w",
			env, configured, publicKey, keysDomain.ErrConfigurationDrift)
	}

	k.logger.Debug("key fetched",
		slog.String("environment", env.String()),
		slog.String("public_key", publicKey),
	)
	return &keysDomain.KeyPair{PublicKey: publicKey, PrivateKey: privateKey}, nil
}

// generate creates a keypair and makes it durable. The backup completes
// before the key is stored or its recipient recorded.
func (k *keyLifecycleUseCase) generate(ctx context.Context, env keysDomain.Environment) (*keysDomain.KeyPair, error) {
	pair, err := k.cipher.Generate()
	if err != nil {
		return nil, err
	}

	artifact, err := k.vault.Backup(ctx, env, pair.PrivateKey)
	if err != nil {
		pair.Zero()
		return nil, err
	}
	timestamp := artifact.Timestamp
	artifact.Zero()

	if err := k.store.Store(ctx, env, pair.PrivateKey); err != nil {
		pair.Zero()
		return nil, err
	}
	if err := k.recipients.SetRecipient(env, pair.PublicKey); err != nil {
		pair.Zero()
		return nil, err
	}

	k.logger.Info("key generated",
		slog.String("environment", env.String()),
		slog.String("public_key", pair.PublicKey),
		slog.String("backup", timestamp),
	)
	return pair, nil
}

// Rotate replaces the active keypair of env.
func (k *keyLifecycleUseCase) Rotate(ctx context.Context, env keysDomain.Environment) (*keysDomain.KeyPair, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	unlock := k.lock(env)
	defer unlock()

	previous, _, err := k.recipients.RecipientFor(env)
	if err != nil {
		return nil, err
	}

	pair, err := k.generate(ctx, env)
	if err != nil {
		return nil, err
	}
	k.remember(env, pair)

	k.logger.Warn("key rotated; artifacts encrypted to the previous recipient must be regenerated",
		slog.String("environment", env.String()),
		slog.String("public_key", pair.PublicKey),
		slog.String("previous_public_key", previous),
	)
	return pair, nil
}

// BackupCurrent requires an existing key; it never generates one.
func (k *keyLifecycleUseCase) BackupCurrent(ctx context.Context, env keysDomain.Environment) (*keysDomain.BackupRef, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	exists, err := k.store.Exists(ctx, env)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%s: nothing to back up: %w", env, keysDomain.ErrKeyNotFound)
	}

	pair, err := k.EnsureKeyPair(ctx, env, EnsureOptions{})
	if err != nil {
		return nil, err
	}
	defer pair.Zero()

	artifact, err := k.vault.Backup(ctx, env, pair.PrivateKey)
	if err != nil {
		return nil, err
	}
	defer artifact.Zero()

	createdAt, err := keysDomain.ParseTimestamp(artifact.Timestamp)
	if err != nil {
		return nil, err
	}
	return &keysDomain.BackupRef{Environment: env, Timestamp: artifact.Timestamp, CreatedAt: createdAt}, nil
}

func (k *keyLifecycleUseCase) PublicKey(ctx context.Context, env keysDomain.Environment) (string, error) {
	pair, err := k.EnsureKeyPair(ctx, env, EnsureOptions{})
	if err != nil {
		return "", err
	}
	defer pair.Zero()
	return pair.PublicKey, nil
}

func clonePair(pair *keysDomain.KeyPair) *keysDomain.KeyPair {
	privateKey := make([]byte, len(pair.PrivateKey))
	copy(privateKey, pair.PrivateKey)
	return &keysDomain.KeyPair{PublicKey: pair.PublicKey, PrivateKey: privateKey}
}
