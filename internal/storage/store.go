// Package storage provides the object store holding sealed keys and backup
// envelopes. Two backends are available: any gocloud.dev bucket URL and a
// MinIO/S3 client. Backends map their native failures onto the shared error
// sentinels so the retrying decorator can tell transient from permanent.
package storage

import (
	"context"
	"fmt"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

// ErrObjectNotFound is returned when the requested object key does not exist.
var ErrObjectNotFound = apperrors.Wrap(apperrors.ErrNotFound, "object not found")

// ObjectStore is a flat key/value view over a bucket.
type ObjectStore interface {
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns the object body or ErrObjectNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write creates or overwrites key.
	Write(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Close releases the backend.
	Close() error
}

// isPermanent reports whether err must not be retried.
func isPermanent(err error) bool {
	return apperrors.Is(err, apperrors.ErrNotFound) ||
		apperrors.Is(err, apperrors.ErrUnauthorized) ||
		apperrors.Is(err, apperrors.ErrForbidden) ||
		apperrors.Is(err, apperrors.ErrInvalidInput)
}

func notFound(key string) error {
	return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
}
