package domain

import (
	"sort"
)

// Generator manifest file names inside an environment directory.
const (
	GeneratorFile     = "secret-generator.yaml"
	KustomizationFile = "kustomization.yaml"
)

// GeneratorManifest is the KSOPS generator listing every artifact of one
// environment, relative to the environment directory.
type GeneratorManifest struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   GeneratorMetadata `json:"metadata"`
	Files      []string          `json:"files"`
}

// GeneratorMetadata names the generator and tells kustomize how to run it.
type GeneratorMetadata struct {
	Name        string            `json:"name"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Kustomization references the generator.
type Kustomization struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Generators []string `json:"generators"`
}

// NewGeneratorManifest creates the manifest of env listing files in sorted order.
func NewGeneratorManifest(env string, files []string) *GeneratorManifest {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	return &GeneratorManifest{
		APIVersion: "viaduct.ai/v1",
		Kind:       "ksops",
		Metadata: GeneratorMetadata{
			Name: env + "-secret-generator",
			Annotations: map[string]string{
				"config.kubernetes.io/function": "exec:\n  path: ksops\n",
			},
		},
		Files: sorted,
	}
}

// NewKustomization creates the kustomization that runs the generator.
func NewKustomization() *Kustomization {
	return &Kustomization{
		APIVersion: "kustomize.config.k8s.io/v1beta1",
		Kind:       "Kustomization",
		Generators: []string{GeneratorFile},
	}
}
