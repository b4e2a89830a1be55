package domain

import (
	"github.com/bizmatters/zerotouch-keys/internal/errors"
)

// Key lifecycle error definitions.
//
// Every error here is fatal to the operation that returns it. None of them is
// ever answered by generating a new key.
var (
	// ErrConfigurationDrift indicates the recipient recorded in the encryption-rule
	// configuration differs from the public half of the environment's key.
	ErrConfigurationDrift = errors.Wrap(errors.ErrConflict, "configuration drift")

	// ErrRecipientNotConfigured indicates the key store holds a key for the
	// environment but the encryption-rule configuration has no recipient for it.
	ErrRecipientNotConfigured = errors.Wrap(errors.ErrConflict, "recipient not configured")

	// ErrBackupIncomplete indicates at least one of the four backup writes failed.
	// The key that was being backed up must not be used.
	ErrBackupIncomplete = errors.Wrap(errors.ErrUnavailable, "backup incomplete")

	// ErrStorageUnavailable indicates the key store could not be reached or rejected the request.
	ErrStorageUnavailable = errors.Wrap(errors.ErrUnavailable, "key store unavailable")

	// ErrKeyNotFound indicates the key store holds no key for an environment
	// whose configuration already names a recipient.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrBackupNotFound indicates the requested backup does not exist.
	ErrBackupNotFound = errors.Wrap(errors.ErrNotFound, "backup not found")

	// ErrRecoveryValidation indicates a recovered key does not match the configured recipient.
	ErrRecoveryValidation = errors.Wrap(errors.ErrConflict, "recovered key does not match configuration")

	// ErrInvalidPrivateKey indicates the supplied material is not a valid private key.
	ErrInvalidPrivateKey = errors.Wrap(errors.ErrInvalidInput, "invalid private key")

	// ErrInvalidEnvironment indicates the environment name is unknown or malformed.
	ErrInvalidEnvironment = errors.Wrap(errors.ErrInvalidInput, "invalid environment")

	// ErrSelfTestFailed indicates the encrypt/decrypt round trip with a supplied key failed.
	ErrSelfTestFailed = errors.Wrap(errors.ErrInvalidInput, "key self-test failed")

	// ErrAmbiguousKeySource indicates a break-glass key was offered from more than one source.
	ErrAmbiguousKeySource = errors.Wrap(errors.ErrInvalidInput, "key must come from exactly one source")
)
