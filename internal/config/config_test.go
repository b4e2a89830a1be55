package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, StorageProviderBlob, cfg.StorageProvider)
				assert.Equal(t, "file:///var/lib/zerotouch/keys?create_dir=true", cfg.StorageURL)
				assert.Equal(t, 30*time.Second, cfg.StorageTimeout)
				assert.Equal(t, 5, cfg.StorageRetryMaxAttempts)
				assert.Equal(t, 200*time.Millisecond, cfg.StorageRetryInitialInterval)
				assert.Equal(t, 5*time.Second, cfg.StorageRetryMaxInterval)
				assert.Equal(t, []string{"pr", "dev", "staging", "prod"}, cfg.Environments)
				assert.Equal(t, "default", cfg.DefaultNamespace)
				assert.Equal(t, "value", cfg.SecretDefaultKey)
				assert.Equal(t, ".sops.yaml", cfg.EncryptionRulesFile)
				assert.Equal(t, LiveContextKubernetes, cfg.LiveContextProvider)
				assert.Equal(t, "argocd", cfg.LiveContextNamespace)
				assert.Equal(t, "sops-age", cfg.LiveContextSecretName)
				assert.Equal(t, "keys.txt", cfg.LiveContextSecretKey)
				assert.True(t, cfg.MetricsEnabled)
				assert.Equal(t, "zerotouch_keys", cfg.MetricsNamespace)
			},
		},
		{
			name: "load custom storage configuration",
			envVars: map[string]string{
				"STORAGE_PROVIDER":           "minio",
				"MINIO_ENDPOINT":             "minio.local:9000",
				"MINIO_BUCKET":               "keys",
				"MINIO_USE_SSL":              "false",
				"STORAGE_TIMEOUT_SECONDS":    "5",
				"STORAGE_RETRY_MAX_ATTEMPTS": "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, StorageProviderMinIO, cfg.StorageProvider)
				assert.Equal(t, "minio.local:9000", cfg.MinIOEndpoint)
				assert.Equal(t, "keys", cfg.MinIOBucket)
				assert.False(t, cfg.MinIOUseSSL)
				assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
				assert.Equal(t, 2, cfg.StorageRetryMaxAttempts)
			},
		},
		{
			name: "environment list is trimmed",
			envVars: map[string]string{
				"ENVIRONMENTS": " dev , prod,, ",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"dev", "prod"}, cfg.Environments)
				assert.True(t, cfg.HasEnvironment("dev"))
				assert.False(t, cfg.HasEnvironment("staging"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			tt.validate(t, Load())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, Load().Validate())
	})

	t.Run("minio requires endpoint and bucket", func(t *testing.T) {
		cfg := Load()
		cfg.StorageProvider = StorageProviderMinIO
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MinIOEndpoint")
		assert.Contains(t, err.Error(), "MinIOBucket")
	})

	t.Run("unknown live context provider", func(t *testing.T) {
		cfg := Load()
		cfg.LiveContextProvider = "vault"
		require.Error(t, cfg.Validate())
	})

	t.Run("retry attempts must be positive", func(t *testing.T) {
		cfg := Load()
		cfg.StorageRetryMaxAttempts = 0
		require.Error(t, cfg.Validate())
	})
}
