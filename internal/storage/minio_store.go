package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

// MinIOConfig holds the connection settings of the MinIO backend.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	KeyPrefix       string
}

// MinIOStore is an ObjectStore over an S3-compatible endpoint.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	keyPrefix string
}

// NewMinIOStore creates the client. No request is issued until the first call.
func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinIOStore{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

func (s *MinIOStore) objectName(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return path.Join(s.keyPrefix, key)
}

func (s *MinIOStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectName(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	err = classifyMinIOError(key, err)
	if apperrors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}

func (s *MinIOStore) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinIOError(key, err)
	}
	defer obj.Close() //nolint:errcheck

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinIOError(key, err)
	}
	return data, nil
}

func (s *MinIOStore) Write(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		s.objectName(key),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"},
	)
	if err != nil {
		return classifyMinIOError(key, err)
	}
	return nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{})
	if err != nil {
		err = classifyMinIOError(key, err)
		if apperrors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (s *MinIOStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	opts := minio.ListObjectsOptions{Prefix: s.objectName(prefix), Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, classifyMinIOError(prefix, obj.Err)
		}
		key := obj.Key
		if s.keyPrefix != "" {
			key = strings.TrimPrefix(key, s.keyPrefix+"/")
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op: the MinIO client holds no resources beyond its HTTP transport.
func (s *MinIOStore) Close() error {
	return nil
}

func classifyMinIOError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return notFound(key)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", key, apperrors.ErrForbidden, err)
	case resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch" ||
		resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w: %w", key, apperrors.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%s: %w", key, err)
	}
}
