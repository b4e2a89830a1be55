// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allisson/go-env"
	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"
)

// Storage providers.
const (
	StorageProviderBlob  = "blob"
	StorageProviderMinIO = "minio"
)

// Live decryption context providers.
const (
	LiveContextKubernetes = "kubernetes"
	LiveContextSSM        = "ssm"
	LiveContextFile       = "file"
)

// Config holds all application configuration.
type Config struct {
	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// StorageProvider selects the object store backend ("blob" or "minio").
	StorageProvider string
	// StorageURL is the gocloud.dev bucket URL (s3://, gs://, azblob://, file://, mem://).
	StorageURL string
	// StoragePrefix is prepended to every object key inside the bucket.
	StoragePrefix string
	// StorageTimeout bounds every single remote storage call.
	StorageTimeout time.Duration
	// StorageRetryMaxAttempts is the total number of attempts per storage call.
	StorageRetryMaxAttempts int
	// StorageRetryInitialInterval is the first backoff interval.
	StorageRetryInitialInterval time.Duration
	// StorageRetryMaxInterval caps the backoff interval.
	StorageRetryMaxInterval time.Duration
	// StorageRateLimitPerSec throttles storage calls issued by one process.
	StorageRateLimitPerSec float64
	// StorageRateLimitBurst is the burst size of the storage throttle.
	StorageRateLimitBurst int

	// MinIO backend settings, used when StorageProvider is "minio".
	MinIOEndpoint        string
	MinIOAccessKeyID     string
	MinIOSecretAccessKey string
	MinIOBucket          string
	MinIORegion          string
	MinIOUseSSL          bool

	// KeyStoreKMSKeyURI is the keeper URI sealing the primary key held by the key store.
	KeyStoreKMSKeyURI string
	// RecoveryKMSKeyURI optionally seals recovery private keys under a separately held keeper.
	RecoveryKMSKeyURI string

	// EncryptionRulesFile is the path of the per-environment recipient configuration.
	EncryptionRulesFile string
	// MappingRulesFile is the optional path of the mapping rule table.
	MappingRulesFile string
	// SecretsOutputDir is the root directory for encrypted artifacts.
	SecretsOutputDir string
	// Environments lists the known environment names.
	Environments []string
	// DefaultNamespace is used when neither a rule nor the mapping file names a namespace.
	DefaultNamespace string
	// SecretDefaultKey is the field key produced by the default mapping rule.
	SecretDefaultKey string

	// LiveContextProvider selects where recovered keys are injected.
	LiveContextProvider string
	// LiveContextNamespace is the Kubernetes namespace of the decryption secret.
	LiveContextNamespace string
	// LiveContextSecretName is the Kubernetes secret consumed by the decryption sidecar.
	LiveContextSecretName string
	// LiveContextSecretKey is the data key holding the private key.
	LiveContextSecretKey string
	// Kubeconfig is the kubeconfig path; in-cluster config is used when empty.
	Kubeconfig string
	// SSMParameterPrefix is the parameter path prefix for the SSM provider.
	SSMParameterPrefix string
	// AWSRegion is the region used by the SSM provider.
	AWSRegion string
	// SSMKMSKeyID is the optional KMS key for SecureString parameters.
	SSMKMSKeyID string
	// LiveContextFile is the key file written by the file provider.
	LiveContextFile string

	// BreakGlassBackupDir receives previous-key envelopes and audit records on break-glass recovery.
	BreakGlassBackupDir string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPushgatewayURL receives the metrics of a run when set.
	MetricsPushgatewayURL string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Object storage
		StorageProvider: env.GetString("STORAGE_PROVIDER", StorageProviderBlob),
		StorageURL: env.GetString(
			"STORAGE_URL",
			"file:///var/lib/zerotouch/keys?create_dir=true",
		),
		StoragePrefix:               env.GetString("STORAGE_PREFIX", ""),
		StorageTimeout:              env.GetDuration("STORAGE_TIMEOUT_SECONDS", 30, time.Second),
		StorageRetryMaxAttempts:     env.GetInt("STORAGE_RETRY_MAX_ATTEMPTS", 5),
		StorageRetryInitialInterval: env.GetDuration("STORAGE_RETRY_INITIAL_INTERVAL_MS", 200, time.Millisecond),
		StorageRetryMaxInterval:     env.GetDuration("STORAGE_RETRY_MAX_INTERVAL_SECONDS", 5, time.Second),
		StorageRateLimitPerSec:      env.GetFloat64("STORAGE_RATE_LIMIT_PER_SEC", 20.0),
		StorageRateLimitBurst:       env.GetInt("STORAGE_RATE_LIMIT_BURST", 10),

		MinIOEndpoint:        env.GetString("MINIO_ENDPOINT", ""),
		MinIOAccessKeyID:     env.GetString("MINIO_ACCESS_KEY_ID", ""),
		MinIOSecretAccessKey: env.GetString("MINIO_SECRET_ACCESS_KEY", ""),
		MinIOBucket:          env.GetString("MINIO_BUCKET", ""),
		MinIORegion:          env.GetString("MINIO_REGION", "us-east-1"),
		MinIOUseSSL:          env.GetBool("MINIO_USE_SSL", true),

		// Key custody
		KeyStoreKMSKeyURI: env.GetString("KEYSTORE_KMS_KEY_URI", ""),
		RecoveryKMSKeyURI: env.GetString("RECOVERY_KMS_KEY_URI", ""),

		// Secret pipeline
		EncryptionRulesFile: env.GetString("ENCRYPTION_RULES_FILE", ".sops.yaml"),
		MappingRulesFile:    env.GetString("MAPPING_RULES_FILE", ""),
		SecretsOutputDir:    env.GetString("SECRETS_OUTPUT_DIR", "secrets"),
		Environments:        splitList(env.GetString("ENVIRONMENTS", "pr,dev,staging,prod")),
		DefaultNamespace:    env.GetString("DEFAULT_NAMESPACE", "default"),
		SecretDefaultKey:    env.GetString("SECRET_DEFAULT_KEY", "value"),

		// Live decryption context
		LiveContextProvider:   env.GetString("LIVE_CONTEXT_PROVIDER", LiveContextKubernetes),
		LiveContextNamespace:  env.GetString("LIVE_CONTEXT_NAMESPACE", "argocd"),
		LiveContextSecretName: env.GetString("LIVE_CONTEXT_SECRET_NAME", "sops-age"),
		LiveContextSecretKey:  env.GetString("LIVE_CONTEXT_SECRET_KEY", "keys.txt"),
		Kubeconfig:            env.GetString("KUBECONFIG", ""),
		SSMParameterPrefix:    env.GetString("SSM_PARAMETER_PREFIX", "/zerotouch/age-keys"),
		AWSRegion:             env.GetString("AWS_REGION", ""),
		SSMKMSKeyID:           env.GetString("SSM_KMS_KEY_ID", ""),
		LiveContextFile:       env.GetString("LIVE_CONTEXT_FILE", "keys.txt"),

		BreakGlassBackupDir: env.GetString("BREAK_GLASS_BACKUP_DIR", ".break-glass"),

		// Metrics
		MetricsEnabled:        env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace:      env.GetString("METRICS_NAMESPACE", "zerotouch_keys"),
		MetricsPushgatewayURL: env.GetString("METRICS_PUSHGATEWAY_URL", ""),
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(
			&c.StorageProvider,
			validation.Required,
			validation.In(StorageProviderBlob, StorageProviderMinIO),
		),
		validation.Field(
			&c.StorageURL,
			validation.When(c.StorageProvider == StorageProviderBlob, validation.Required),
		),
		validation.Field(
			&c.MinIOEndpoint,
			validation.When(c.StorageProvider == StorageProviderMinIO, validation.Required),
		),
		validation.Field(
			&c.MinIOBucket,
			validation.When(c.StorageProvider == StorageProviderMinIO, validation.Required),
		),
		validation.Field(&c.StorageTimeout, validation.Required),
		validation.Field(&c.StorageRetryMaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.Environments, validation.Required),
		validation.Field(&c.DefaultNamespace, validation.Required),
		validation.Field(&c.SecretDefaultKey, validation.Required),
		validation.Field(
			&c.LiveContextProvider,
			validation.Required,
			validation.In(LiveContextKubernetes, LiveContextSSM, LiveContextFile),
		),
	)
}

// HasEnvironment reports whether name is one of the configured environments.
func (c *Config) HasEnvironment(name string) bool {
	for _, e := range c.Environments {
		if e == name {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
