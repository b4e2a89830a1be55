// Package service renders secret records into encrypted artifacts and back.
package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"

	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	secretsDomain "github.com/bizmatters/zerotouch-keys/internal/secrets/domain"
)

const (
	valuePrefix = "ENC[age,data:"
	valueSuffix = "]"
)

// ArtifactCodec converts between secret records and encrypted artifacts.
type ArtifactCodec interface {
	// Encode encrypts every field of rec to recipient and renders the artifact document.
	Encode(rec mapping.SecretRecord, recipient, encryptedRegex string) ([]byte, error)
	// Parse reads an artifact without decrypting it.
	Parse(data []byte) (*secretsDomain.Artifact, error)
	// Decrypt parses an artifact and decrypts its values with identity.
	Decrypt(data, identity []byte) (*mapping.SecretRecord, error)
}

type ageArtifactCodec struct {
	cipher keysService.Cipher
}

// NewArtifactCodec creates an ArtifactCodec encrypting values with cipher.
func NewArtifactCodec(cipher keysService.Cipher) ArtifactCodec {
	return &ageArtifactCodec{cipher: cipher}
}

func (c *ageArtifactCodec) Encode(rec mapping.SecretRecord, recipient, encryptedRegex string) ([]byte, error) {
	artifact := secretsDomain.Artifact{
		APIVersion: secretsDomain.SecretAPIVersion,
		Kind:       secretsDomain.SecretKind,
		Metadata: secretsDomain.Metadata{
			Name:      rec.Name,
			Namespace: rec.Namespace,
			Annotations: map[string]string{
				secretsDomain.ManagedByAnnotation: secretsDomain.ManagedBy,
			},
		},
		Type:       secretsDomain.SecretTypeOpaque,
		StringData: make(map[string]string, len(rec.Fields)),
		Encryption: secretsDomain.Encryption{
			Recipient:      recipient,
			EncryptedRegex: encryptedRegex,
			Version:        secretsDomain.EncryptionVersion,
		},
	}
	if rec.OrderingHint != 0 {
		artifact.Metadata.Annotations[secretsDomain.SyncWaveAnnotation] = strconv.Itoa(rec.OrderingHint)
	}

	for key, value := range rec.Fields {
		ciphertext, err := c.cipher.Encrypt(recipient, []byte(value))
		if err != nil {
			return nil, fmt.Errorf("%s/%s field %s: %w", rec.Namespace, rec.Name, key, err)
		}
		artifact.StringData[key] = valuePrefix + base64.StdEncoding.EncodeToString(ciphertext) + valueSuffix
	}

	data, err := yaml.Marshal(&artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s/%s: %w", rec.Namespace, rec.Name, err)
	}
	return data, nil
}

func (c *ageArtifactCodec) Parse(data []byte) (*secretsDomain.Artifact, error) {
	var artifact secretsDomain.Artifact
	if err := yaml.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %w", secretsDomain.ErrArtifactCorrupt, err)
	}
	if artifact.Kind != secretsDomain.SecretKind || artifact.Metadata.Name == "" {
		return nil, fmt.Errorf("%w: not a secret artifact", secretsDomain.ErrArtifactCorrupt)
	}
	return &artifact, nil
}

func (c *ageArtifactCodec) Decrypt(data, identity []byte) (*mapping.SecretRecord, error) {
	artifact, err := c.Parse(data)
	if err != nil {
		return nil, err
	}

	rec := &mapping.SecretRecord{
		Name:         artifact.Metadata.Name,
		Namespace:    artifact.Metadata.Namespace,
		Fields:       make(map[string]string, len(artifact.StringData)),
		OrderingHint: artifact.OrderingHint(),
	}
	for key, value := range artifact.StringData {
		encoded, ok := strings.CutPrefix(value, valuePrefix)
		if !ok || !strings.HasSuffix(encoded, valueSuffix) {
			return nil, fmt.Errorf("%w: field %s is not encrypted", secretsDomain.ErrArtifactCorrupt, key)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSuffix(encoded, valueSuffix))
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", secretsDomain.ErrArtifactCorrupt, key, err)
		}
		plaintext, err := c.cipher.Decrypt(identity, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", secretsDomain.ErrArtifactCorrupt, key, err)
		}
		rec.Fields[key] = string(plaintext)
	}
	return rec, nil
}
