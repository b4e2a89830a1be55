package livecontext

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"
)

const (
	managedByLabel        = "app.kubernetes.io/managed-by"
	managedByValue        = "zerotouch-keys"
	environmentAnnotation = "zerotouch.io/environment"
)

// LoadRESTConfig loads the kube config from path. An empty path uses the
// default loading rules (KUBECONFIG, then in-cluster).
func LoadRESTConfig(path string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules = &clientcmd.ClientConfigLoadingRules{ExplicitPath: path}
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return cfg, nil
}

// NewClientSet creates a clientset from the kubeconfig at path.
func NewClientSet(path string) (kubernetes.Interface, error) {
	cfg, err := LoadRESTConfig(path)
	if err != nil {
		return nil, err
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return client, nil
}

// KubernetesInjector keeps the key in one data field of a Secret, the way the
// GitOps decryption sidecar mounts it.
type KubernetesInjector struct {
	client    kubernetes.Interface
	namespace string
	name      string
	key       string
}

// NewKubernetesInjector creates a KubernetesInjector for namespace/name, field key.
func NewKubernetesInjector(client kubernetes.Interface, namespace, name, key string) *KubernetesInjector {
	return &KubernetesInjector{client: client, namespace: namespace, name: name, key: key}
}

func (k *KubernetesInjector) Describe(env string) string {
	return fmt.Sprintf("kubernetes:%s/%s[%s]", k.namespace, k.name, k.key)
}

func (k *KubernetesInjector) Current(ctx context.Context, env string) ([]byte, bool, error) {
	secret, err := k.client.CoreV1().Secrets(k.namespace).Get(ctx, k.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read secret %s/%s: %w", k.namespace, k.name, err)
	}
	value, ok := secret.Data[k.key]
	if !ok || len(value) == 0 {
		return nil, false, nil
	}
	return value, true, nil
}

func (k *KubernetesInjector) Inject(ctx context.Context, env string, key []byte) error {
	secrets := k.client.CoreV1().Secrets(k.namespace)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		existing, err := secrets.Get(ctx, k.name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			_, err = secrets.Create(ctx, &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:        k.name,
					Namespace:   k.namespace,
					Labels:      map[string]string{managedByLabel: managedByValue},
					Annotations: map[string]string{environmentAnnotation: env},
				},
				Type: corev1.SecretTypeOpaque,
				Data: map[string][]byte{k.key: key},
			}, metav1.CreateOptions{})
			return err
		}
		if err != nil {
			return err
		}

		updated := existing.DeepCopy()
		if updated.Data == nil {
			updated.Data = map[string][]byte{}
		}
		if updated.Annotations == nil {
			updated.Annotations = map[string]string{}
		}
		updated.Data[k.key] = key
		updated.Annotations[environmentAnnotation] = env
		_, err = secrets.Update(ctx, updated, metav1.UpdateOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write secret %s/%s: %w", k.namespace, k.name, err)
	}
	return nil
}
