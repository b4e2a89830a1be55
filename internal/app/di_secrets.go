package app

import (
	"fmt"

	keysRepository "github.com/bizmatters/zerotouch-keys/internal/keys/repository"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	secretsService "github.com/bizmatters/zerotouch-keys/internal/secrets/service"
	secretsUseCase "github.com/bizmatters/zerotouch-keys/internal/secrets/usecase"
)

// MappingEngine returns the secret mapping engine loaded from MAPPING_RULES_FILE.
func (c *Container) MappingEngine() (*mapping.Engine, error) {
	var err error
	c.mappingEngineInit.Do(func() {
		c.mappingEngine, err = c.initMappingEngine()
		if err != nil {
			c.initErrors["mappingEngine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["mappingEngine"]; exists {
		return nil, storedErr
	}
	return c.mappingEngine, nil
}

// ArtifactCodec returns the encrypted artifact codec.
func (c *Container) ArtifactCodec() secretsService.ArtifactCodec {
	c.artifactCodecInit.Do(func() {
		c.artifactCodec = secretsService.NewArtifactCodec(c.Cipher())
	})
	return c.artifactCodec
}

// SecretEncryptionUseCase returns the secret encryption use case.
func (c *Container) SecretEncryptionUseCase() (secretsUseCase.SecretEncryptionUseCase, error) {
	var err error
	c.secretEncryptionUseCaseInit.Do(func() {
		c.secretEncryptionUseCase, err = c.initSecretEncryptionUseCase()
		if err != nil {
			c.initErrors["secretEncryptionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretEncryptionUseCase"]; exists {
		return nil, storedErr
	}
	return c.secretEncryptionUseCase, nil
}

// initMappingEngine loads the rule table and builds the engine.
func (c *Container) initMappingEngine() (*mapping.Engine, error) {
	table, err := mapping.LoadTable(c.config.MappingRulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping rules: %w", err)
	}

	return mapping.NewEngine(table, mapping.Options{
		Environments:     c.config.Environments,
		DefaultNamespace: c.config.DefaultNamespace,
		DefaultKey:       c.config.SecretDefaultKey,
	}, c.Logger()), nil
}

// initSecretEncryptionUseCase creates the secret encryption use case with all its dependencies.
func (c *Container) initSecretEncryptionUseCase() (secretsUseCase.SecretEncryptionUseCase, error) {
	keyLifecycle, err := c.KeyLifecycleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key lifecycle use case for secret encryption use case: %w", err)
	}

	engine, err := c.MappingEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping engine for secret encryption use case: %w", err)
	}

	baseUseCase := secretsUseCase.NewSecretEncryptionUseCase(
		keyLifecycle,
		engine,
		c.ArtifactCodec(),
		c.config.SecretsOutputDir,
		keysRepository.DefaultEncryptedRegex,
		len(c.config.Environments),
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for secret encryption use case: %w", err)
		}
		return secretsUseCase.NewSecretEncryptionUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}
