// Package livecontext reads and replaces the private key held by the runtime
// decryption context, i.e. the place the consuming decryption process loads
// its key from: a Kubernetes Secret, an SSM SecureString parameter or a file.
package livecontext

import (
	"context"
	"fmt"

	"github.com/bizmatters/zerotouch-keys/internal/config"
)

// Injector gives access to the live key of an environment.
type Injector interface {
	// Current returns the live key; ok is false when none is installed.
	Current(ctx context.Context, env string) (key []byte, ok bool, err error)
	// Inject installs key, replacing any previous one.
	Inject(ctx context.Context, env string, key []byte) error
	// Describe names the target for logs, e.g. "kubernetes:argocd/sops-age".
	Describe(env string) string
}

// New builds the injector selected by cfg.LiveContextProvider.
func New(ctx context.Context, cfg *config.Config) (Injector, error) {
	switch cfg.LiveContextProvider {
	case config.LiveContextKubernetes:
		client, err := NewClientSet(cfg.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return NewKubernetesInjector(client, cfg.LiveContextNamespace, cfg.LiveContextSecretName,
			cfg.LiveContextSecretKey), nil
	case config.LiveContextSSM:
		client, err := NewSSMClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return NewSSMInjector(client, cfg.SSMParameterPrefix, cfg.SSMKMSKeyID), nil
	case config.LiveContextFile:
		return NewFileInjector(cfg.LiveContextFile), nil
	default:
		return nil, fmt.Errorf("unsupported live context provider: %s", cfg.LiveContextProvider)
	}
}
