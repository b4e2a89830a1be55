package domain

import (
	"path"
	"strconv"
)

// Artifact document constants.
const (
	SecretAPIVersion = "v1"
	SecretKind       = "Secret"
	SecretTypeOpaque = "Opaque"

	// EncryptionVersion identifies the value encoding of the trailer.
	EncryptionVersion = "zerotouch-keys/v1"

	// ArtifactExt is the extension of every encrypted artifact.
	ArtifactExt = ".enc"

	// SyncWaveAnnotation carries the record ordering hint.
	SyncWaveAnnotation = "argocd.argoproj.io/sync-wave"
	// ManagedByAnnotation names the generator of the artifact.
	ManagedByAnnotation = "app.kubernetes.io/managed-by"
	ManagedBy           = "zerotouch-keys"
)

// Metadata is the legible part of an artifact; it lets the consumer route
// the document without decrypting it.
type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Encryption is the trailer recording how the values were encrypted.
type Encryption struct {
	Recipient      string `json:"recipient"`
	EncryptedRegex string `json:"encryptedRegex"`
	Version        string `json:"version"`
}

// Artifact is the at-rest form of a secret record: a Secret-shaped document
// whose stringData values are ciphertext.
type Artifact struct {
	APIVersion string            `json:"apiVersion"`
	Kind       string            `json:"kind"`
	Metadata   Metadata          `json:"metadata"`
	Type       string            `json:"type"`
	StringData map[string]string `json:"stringData"`
	Encryption Encryption        `json:"encryption"`
}

// OrderingHint returns the sync wave annotation, or zero.
func (a *Artifact) OrderingHint() int {
	wave, err := strconv.Atoi(a.Metadata.Annotations[SyncWaveAnnotation])
	if err != nil {
		return 0
	}
	return wave
}

// ArtifactFile returns the artifact path relative to the environment
// directory: {name}.enc in the environment's namespace, {namespace}/{name}.enc otherwise.
func ArtifactFile(name, namespace, envNamespace string) string {
	if namespace == envNamespace {
		return name + ArtifactExt
	}
	return path.Join(namespace, name+ArtifactExt)
}
