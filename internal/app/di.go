// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	"github.com/bizmatters/zerotouch-keys/internal/config"
	keysRepository "github.com/bizmatters/zerotouch-keys/internal/keys/repository"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	"github.com/bizmatters/zerotouch-keys/internal/livecontext"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	"github.com/bizmatters/zerotouch-keys/internal/metrics"
	secretsService "github.com/bizmatters/zerotouch-keys/internal/secrets/service"
	secretsUseCase "github.com/bizmatters/zerotouch-keys/internal/secrets/usecase"
	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	objectStore     storage.ObjectStore
	breakGlassStore storage.ObjectStore

	// Services
	cipher         keysService.Cipher
	kmsService     keysService.KMSService
	keyStoreSealer keysService.Sealer
	recoverySealer keysService.Sealer
	artifactCodec  secretsService.ArtifactCodec

	// Repositories
	keyStore        *keysRepository.SealedKeyStore
	recipientConfig *keysRepository.FileRecipientConfig
	auditRecorder   *audit.Recorder
	liveContext     livecontext.Injector
	mappingEngine   *mapping.Engine

	// Use Cases
	backupVaultUseCase      keysUseCase.BackupVaultUseCase
	breakGlassVaultUseCase  keysUseCase.BackupVaultUseCase
	keyLifecycleUseCase     keysUseCase.KeyLifecycleUseCase
	recoveryUseCase         keysUseCase.RecoveryUseCase
	secretEncryptionUseCase secretsUseCase.SecretEncryptionUseCase

	// Initialization flags and mutex for thread-safety
	mu                          sync.Mutex
	loggerInit                  sync.Once
	metricsProviderInit         sync.Once
	businessMetricsInit         sync.Once
	objectStoreInit             sync.Once
	breakGlassStoreInit         sync.Once
	cipherInit                  sync.Once
	kmsServiceInit              sync.Once
	keyStoreSealerInit          sync.Once
	recoverySealerInit          sync.Once
	artifactCodecInit           sync.Once
	keyStoreInit                sync.Once
	recipientConfigInit         sync.Once
	auditRecorderInit           sync.Once
	liveContextInit             sync.Once
	mappingEngineInit           sync.Once
	backupVaultUseCaseInit      sync.Once
	breakGlassVaultUseCaseInit  sync.Once
	keyLifecycleUseCaseInit     sync.Once
	recoveryUseCaseInit         sync.Once
	secretEncryptionUseCaseInit sync.Once
	initErrors                  map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// MetricsProvider returns the OpenTelemetry meter provider backed by a Prometheus registry.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = metrics.NewProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// ObjectStore returns the remote object store holding keys and backups.
func (c *Container) ObjectStore() (storage.ObjectStore, error) {
	var err error
	c.objectStoreInit.Do(func() {
		c.objectStore, err = storage.Open(context.Background(), c.config)
		if err != nil {
			c.initErrors["objectStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["objectStore"]; exists {
		return nil, storedErr
	}
	return c.objectStore, nil
}

// BreakGlassStore returns the local bucket receiving break-glass envelopes and audit records.
func (c *Container) BreakGlassStore() (storage.ObjectStore, error) {
	var err error
	c.breakGlassStoreInit.Do(func() {
		c.breakGlassStore, err = c.initBreakGlassStore()
		if err != nil {
			c.initErrors["breakGlassStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["breakGlassStore"]; exists {
		return nil, storedErr
	}
	return c.breakGlassStore, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error

	// Close object stores if initialized
	if c.objectStore != nil {
		if err := c.objectStore.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("object store close: %w", err))
		}
	}
	if c.breakGlassStore != nil {
		if err := c.breakGlassStore.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("break-glass store close: %w", err))
		}
	}

	// Close KMS keepers if initialized
	if c.keyStoreSealer != nil {
		if err := c.keyStoreSealer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("key store sealer close: %w", err))
		}
	}
	if c.recoverySealer != nil {
		if err := c.recoverySealer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("recovery sealer close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	return nil
}

// initLogger creates and configures a structured logger based on the log level.
// Logs go to stderr so command output on stdout stays machine-readable.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initBusinessMetrics creates the business metrics on the container's meter provider.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initBreakGlassStore opens the break-glass directory as a file bucket.
func (c *Container) initBreakGlassStore() (storage.ObjectStore, error) {
	store, err := storage.OpenLocalStore(c.config.BreakGlassBackupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open break-glass store: %w", err)
	}
	return store, nil
}
