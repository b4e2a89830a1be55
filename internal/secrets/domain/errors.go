// Package domain defines the encrypted secret artifacts, the generator
// manifest that indexes them and their on-disk layout.
package domain

import (
	"github.com/bizmatters/zerotouch-keys/internal/errors"
)

// Secret artifact error definitions.
var (
	// ErrArtifactCorrupt indicates an artifact could not be parsed or decrypted.
	ErrArtifactCorrupt = errors.Wrap(errors.ErrInvalidInput, "artifact corrupt")

	// ErrManifestNotFound indicates the environment has no generator manifest.
	ErrManifestNotFound = errors.Wrap(errors.ErrNotFound, "generator manifest not found")

	// ErrVerificationFailed indicates the artifact set does not decrypt cleanly
	// with the active key or does not match its manifest.
	ErrVerificationFailed = errors.Wrap(errors.ErrConflict, "artifact verification failed")
)
