package app

import (
	"context"
	"fmt"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	keysRepository "github.com/bizmatters/zerotouch-keys/internal/keys/repository"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	"github.com/bizmatters/zerotouch-keys/internal/livecontext"
	"github.com/bizmatters/zerotouch-keys/internal/retry"
	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

// Cipher returns the age cipher.
func (c *Container) Cipher() keysService.Cipher {
	c.cipherInit.Do(func() {
		c.cipher = keysService.NewAgeCipher()
	})
	return c.cipher
}

// KMSService returns the KMS service.
func (c *Container) KMSService() keysService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = keysService.NewKMSService()
	})
	return c.kmsService
}

// KeyStoreSealer returns the sealer protecting primary keys held by the key store.
func (c *Container) KeyStoreSealer() (keysService.Sealer, error) {
	var err error
	c.keyStoreSealerInit.Do(func() {
		c.keyStoreSealer, err = c.initKeyStoreSealer()
		if err != nil {
			c.initErrors["keyStoreSealer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyStoreSealer"]; exists {
		return nil, storedErr
	}
	return c.keyStoreSealer, nil
}

// RecoverySealer returns the optional sealer for recovery private keys.
// It returns nil when RECOVERY_KMS_KEY_URI is not configured.
func (c *Container) RecoverySealer() (keysService.Sealer, error) {
	var err error
	c.recoverySealerInit.Do(func() {
		c.recoverySealer, err = c.initRecoverySealer()
		if err != nil {
			c.initErrors["recoverySealer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoverySealer"]; exists {
		return nil, storedErr
	}
	return c.recoverySealer, nil
}

// KeyStore returns the key store client.
func (c *Container) KeyStore() (*keysRepository.SealedKeyStore, error) {
	var err error
	c.keyStoreInit.Do(func() {
		c.keyStore, err = c.initKeyStore()
		if err != nil {
			c.initErrors["keyStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyStore"]; exists {
		return nil, storedErr
	}
	return c.keyStore, nil
}

// RecipientConfig returns the encryption-rule configuration.
func (c *Container) RecipientConfig() *keysRepository.FileRecipientConfig {
	c.recipientConfigInit.Do(func() {
		c.recipientConfig = keysRepository.NewFileRecipientConfig(c.config.EncryptionRulesFile)
	})
	return c.recipientConfig
}

// AuditRecorder returns the break-glass audit recorder.
func (c *Container) AuditRecorder() (*audit.Recorder, error) {
	var err error
	c.auditRecorderInit.Do(func() {
		c.auditRecorder, err = c.initAuditRecorder()
		if err != nil {
			c.initErrors["auditRecorder"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRecorder"]; exists {
		return nil, storedErr
	}
	return c.auditRecorder, nil
}

// LiveContext returns the injector for the runtime decryption context.
func (c *Container) LiveContext() (livecontext.Injector, error) {
	var err error
	c.liveContextInit.Do(func() {
		c.liveContext, err = c.initLiveContext()
		if err != nil {
			c.initErrors["liveContext"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["liveContext"]; exists {
		return nil, storedErr
	}
	return c.liveContext, nil
}

// BackupVaultUseCase returns the envelope backup vault over the remote object store.
func (c *Container) BackupVaultUseCase() (keysUseCase.BackupVaultUseCase, error) {
	var err error
	c.backupVaultUseCaseInit.Do(func() {
		c.backupVaultUseCase, err = c.initBackupVaultUseCase()
		if err != nil {
			c.initErrors["backupVaultUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["backupVaultUseCase"]; exists {
		return nil, storedErr
	}
	return c.backupVaultUseCase, nil
}

// BreakGlassVaultUseCase returns the vault writing into the local break-glass directory.
func (c *Container) BreakGlassVaultUseCase() (keysUseCase.BackupVaultUseCase, error) {
	var err error
	c.breakGlassVaultUseCaseInit.Do(func() {
		c.breakGlassVaultUseCase, err = c.initBreakGlassVaultUseCase()
		if err != nil {
			c.initErrors["breakGlassVaultUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["breakGlassVaultUseCase"]; exists {
		return nil, storedErr
	}
	return c.breakGlassVaultUseCase, nil
}

// KeyLifecycleUseCase returns the key lifecycle use case.
func (c *Container) KeyLifecycleUseCase() (keysUseCase.KeyLifecycleUseCase, error) {
	var err error
	c.keyLifecycleUseCaseInit.Do(func() {
		c.keyLifecycleUseCase, err = c.initKeyLifecycleUseCase()
		if err != nil {
			c.initErrors["keyLifecycleUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyLifecycleUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyLifecycleUseCase, nil
}

// RecoveryUseCase returns the recovery use case.
func (c *Container) RecoveryUseCase() (keysUseCase.RecoveryUseCase, error) {
	var err error
	c.recoveryUseCaseInit.Do(func() {
		c.recoveryUseCase, err = c.initRecoveryUseCase()
		if err != nil {
			c.initErrors["recoveryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.recoveryUseCase, nil
}

// initKeyStoreSealer opens the keeper named by KEYSTORE_KMS_KEY_URI.
func (c *Container) initKeyStoreSealer() (keysService.Sealer, error) {
	if c.config.KeyStoreKMSKeyURI == "" {
		return nil, fmt.Errorf("KEYSTORE_KMS_KEY_URI is required")
	}
	sealer, err := c.KMSService().OpenSealer(context.Background(), c.config.KeyStoreKMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store keeper: %w", err)
	}
	return keysService.WithRetry(sealer, c.remoteCallRunner()), nil
}

// initRecoverySealer opens the keeper named by RECOVERY_KMS_KEY_URI, if any.
func (c *Container) initRecoverySealer() (keysService.Sealer, error) {
	if c.config.RecoveryKMSKeyURI == "" {
		return nil, nil
	}
	sealer, err := c.KMSService().OpenSealer(context.Background(), c.config.RecoveryKMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open recovery keeper: %w", err)
	}
	return keysService.WithRetry(sealer, c.remoteCallRunner()), nil
}

// initKeyStore creates the key store over the remote object store.
func (c *Container) initKeyStore() (*keysRepository.SealedKeyStore, error) {
	objects, err := c.ObjectStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get object store for key store: %w", err)
	}

	sealer, err := c.KeyStoreSealer()
	if err != nil {
		return nil, fmt.Errorf("failed to get sealer for key store: %w", err)
	}

	return keysRepository.NewSealedKeyStore(objects, sealer), nil
}

// initAuditRecorder creates the recorder writing signed records next to break-glass envelopes.
func (c *Container) initAuditRecorder() (*audit.Recorder, error) {
	store, err := c.BreakGlassStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get break-glass store for audit recorder: %w", err)
	}
	return audit.NewRecorder(store, audit.NewSigner(), nil), nil
}

// initLiveContext builds the injector selected by LIVE_CONTEXT_PROVIDER.
func (c *Container) initLiveContext() (livecontext.Injector, error) {
	injector, err := livecontext.New(context.Background(), c.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create live context: %w", err)
	}
	return livecontext.WithRetry(injector, c.remoteCallRunner()), nil
}

// remoteCallRunner bounds KMS and live context calls with the storage retry policy.
func (c *Container) remoteCallRunner() *retry.Runner {
	return retry.NewRunner(storage.PolicyFromConfig(c.config))
}

// initBackupVaultUseCase creates the backup vault use case with all its dependencies.
func (c *Container) initBackupVaultUseCase() (keysUseCase.BackupVaultUseCase, error) {
	objects, err := c.ObjectStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get object store for backup vault: %w", err)
	}

	recoverySealer, err := c.RecoverySealer()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery sealer for backup vault: %w", err)
	}

	baseUseCase := keysUseCase.NewBackupVaultUseCase(objects, c.Cipher(), recoverySealer, c.Logger(), nil)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for backup vault: %w", err)
		}
		return keysUseCase.NewBackupVaultUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initBreakGlassVaultUseCase creates the local vault used by break-glass recovery.
// Its recovery keys are never KMS sealed: break-glass must work while the
// remote services are unreachable.
func (c *Container) initBreakGlassVaultUseCase() (keysUseCase.BackupVaultUseCase, error) {
	store, err := c.BreakGlassStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get break-glass store for break-glass vault: %w", err)
	}
	return keysUseCase.NewBackupVaultUseCase(store, c.Cipher(), nil, c.Logger(), nil), nil
}

// initKeyLifecycleUseCase creates the key lifecycle use case with all its dependencies.
func (c *Container) initKeyLifecycleUseCase() (keysUseCase.KeyLifecycleUseCase, error) {
	keyStore, err := c.KeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for key lifecycle use case: %w", err)
	}

	vault, err := c.BackupVaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get backup vault for key lifecycle use case: %w", err)
	}

	baseUseCase := keysUseCase.NewKeyLifecycleUseCase(
		keyStore,
		c.RecipientConfig(),
		vault,
		c.Cipher(),
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for key lifecycle use case: %w", err)
		}
		return keysUseCase.NewKeyLifecycleUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initRecoveryUseCase creates the recovery use case with all its dependencies.
func (c *Container) initRecoveryUseCase() (keysUseCase.RecoveryUseCase, error) {
	vault, err := c.BackupVaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get backup vault for recovery use case: %w", err)
	}

	breakGlassVault, err := c.BreakGlassVaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get break-glass vault for recovery use case: %w", err)
	}

	live, err := c.LiveContext()
	if err != nil {
		return nil, fmt.Errorf("failed to get live context for recovery use case: %w", err)
	}

	auditor, err := c.AuditRecorder()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit recorder for recovery use case: %w", err)
	}

	baseUseCase := keysUseCase.NewRecoveryUseCase(
		vault,
		breakGlassVault,
		c.RecipientConfig(),
		c.Cipher(),
		live,
		auditor,
		c.Logger(),
		nil,
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for recovery use case: %w", err)
		}
		return keysUseCase.NewRecoveryUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
