package storage

import (
	"context"
	"fmt"

	"github.com/bizmatters/zerotouch-keys/internal/config"
	"github.com/bizmatters/zerotouch-keys/internal/retry"
)

// Open builds the configured backend wrapped with the configured retry policy.
func Open(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)

	switch cfg.StorageProvider {
	case config.StorageProviderBlob:
		store, err = OpenBlobStore(ctx, cfg.StorageURL, cfg.StoragePrefix)
	case config.StorageProviderMinIO:
		store, err = NewMinIOStore(MinIOConfig{
			Endpoint:        cfg.MinIOEndpoint,
			AccessKeyID:     cfg.MinIOAccessKeyID,
			SecretAccessKey: cfg.MinIOSecretAccessKey,
			Bucket:          cfg.MinIOBucket,
			Region:          cfg.MinIORegion,
			UseSSL:          cfg.MinIOUseSSL,
			KeyPrefix:       cfg.StoragePrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.StorageProvider)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(store, retry.NewRunner(PolicyFromConfig(cfg))), nil
}

// PolicyFromConfig maps the storage settings onto a retry policy.
func PolicyFromConfig(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.StorageRetryMaxAttempts,
		InitialInterval: cfg.StorageRetryInitialInterval,
		MaxInterval:     cfg.StorageRetryMaxInterval,
		Timeout:         cfg.StorageTimeout,
		RatePerSec:      cfg.StorageRateLimitPerSec,
		Burst:           cfg.StorageRateLimitBurst,
	}
}
