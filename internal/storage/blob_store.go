package storage

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob" // azblob:// URLs
	"gocloud.dev/blob/fileblob"    // file:// URLs
	_ "gocloud.dev/blob/gcsblob"   // gs:// URLs
	_ "gocloud.dev/blob/memblob"   // mem:// URLs
	_ "gocloud.dev/blob/s3blob"    // s3:// URLs
	"gocloud.dev/gcerrors"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

// BlobStore is an ObjectStore over a gocloud.dev bucket.
type BlobStore struct {
	bucket *blob.Bucket
}

// OpenBlobStore opens the bucket at url (s3://, gs://, azblob://, file://, mem://).
// A non-empty prefix scopes every key inside the bucket.
func OpenBlobStore(ctx context.Context, url, prefix string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return NewBlobStore(bucket, prefix), nil
}

// OpenLocalStore opens dir as a file bucket, creating it when missing.
func OpenLocalStore(dir string) (*BlobStore, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open local bucket %s: %w", dir, err)
	}
	return NewBlobStore(bucket, ""), nil
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket, prefix string) *BlobStore {
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, normalizePrefix(prefix))
	}
	return &BlobStore{bucket: bucket}
}

func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, classifyBlobError(key, err)
	}
	return ok, nil
}

func (s *BlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, classifyBlobError(key, err)
	}
	return data, nil
}

func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	opts := &blob.WriterOptions{ContentType: "text/plain; charset=utf-8"}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return classifyBlobError(key, err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return classifyBlobError(key, err)
	}
	return nil
}

func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyBlobError(prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func classifyBlobError(key string, err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return notFound(key)
	case gcerrors.PermissionDenied:
		return fmt.Errorf("%s: %w: %w", key, apperrors.ErrForbidden, err)
	case gcerrors.InvalidArgument:
		return fmt.Errorf("%s: %w: %w", key, apperrors.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%s: %w", key, err)
	}
}

func normalizePrefix(prefix string) string {
	if prefix[len(prefix)-1] != '/' {
		return prefix + "/"
	}
	return prefix
}
