package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
)

func newRecipient(t *testing.T) string {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return id.Recipient().String()
}

func TestFileRecipientConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sops.yaml")
	cfg := NewFileRecipientConfig(path)
	dev := keysDomain.Environment("dev")

	t.Run("missing file has no recipients", func(t *testing.T) {
		_, ok, err := cfg.RecipientFor(dev)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	devRecipient := newRecipient(t)
	prodRecipient := newRecipient(t)

	t.Run("set creates one rule per environment", func(t *testing.T) {
		require.NoError(t, cfg.SetRecipient(dev, devRecipient))
		require.NoError(t, cfg.SetRecipient("prod", prodRecipient))

		got, ok, err := cfg.RecipientFor(dev)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, devRecipient, got)

		rule, ok, err := cfg.Rule("prod")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, prodRecipient, rule.Age)
		assert.Equal(t, DefaultEncryptedRegex, rule.EncryptedRegex)
		assert.Regexp(t, rule.PathRegex, "secrets/prod/database-url.enc")
		assert.NotRegexp(t, rule.PathRegex, "secrets/dev/database-url.enc")
	})

	t.Run("set replaces existing recipient", func(t *testing.T) {
		rotated := newRecipient(t)
		require.NoError(t, cfg.SetRecipient(dev, rotated))

		got, _, err := cfg.RecipientFor(dev)
		require.NoError(t, err)
		assert.Equal(t, rotated, got)

		other, _, err := cfg.RecipientFor("prod")
		require.NoError(t, err)
		assert.Equal(t, prodRecipient, other)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "creation_rules:")
		assert.Equal(t, 2, strings.Count(string(data), "environment:"))
	})

	t.Run("invalid recipient is rejected", func(t *testing.T) {
		err := cfg.SetRecipient(dev, "age1broken")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestFileRecipientConfig_HandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sops.yaml")
	recipient := newRecipient(t)
	content := "creation_rules:\n" +
		"  - path_regex: staging/.*\\.enc$\n" +
		"    encrypted_regex: ^(data|stringData)$\n" +
		"    age: " + recipient + "\n" +
		"    environment: staging\n" +
		"  - path_regex: broken/.*\n" +
		"    age: not-a-recipient\n" +
		"    environment: broken\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewFileRecipientConfig(path)

	got, ok, err := cfg.RecipientFor("staging")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recipient, got)

	_, _, err = cfg.RecipientFor("broken")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, ok, err = cfg.RecipientFor("dev")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileRecipientConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creation_rules: [\n"), 0o644))

	_, _, err := NewFileRecipientConfig(path).RecipientFor("dev")
	assert.Error(t, err)
}

func TestFileRecipientConfig_SetKeepsForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sops.yaml")
	legacy := newRecipient(t)
	content := "stores:\n" +
		"  yaml:\n" +
		"    indent: 2\n" +
		"creation_rules:\n" +
		"  - path_regex: legacy/.*\\.yaml$\n" +
		"    unencrypted_regex: ^metadata$\n" +
		"    shamir_threshold: 2\n" +
		"    key_groups:\n" +
		"      - age:\n" +
		"          - " + legacy + "\n" +
		"  - path_regex: staging/.*\\.enc$\n" +
		"    environment: staging\n" +
		"    pgp: FBC7B9E2A4F9289AC0C1D4843D16CEE4A27381B4\n" +
		"    age: " + legacy + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewFileRecipientConfig(path)
	devRecipient := newRecipient(t)
	stagingRecipient := newRecipient(t)
	require.NoError(t, cfg.SetRecipient("dev", devRecipient))
	require.NoError(t, cfg.SetRecipient("staging", stagingRecipient))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Stores        map[string]map[string]any `json:"stores"`
		CreationRules []map[string]any          `json:"creation_rules"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))

	assert.Equal(t, float64(2), doc.Stores["yaml"]["indent"])
	require.Len(t, doc.CreationRules, 3)

	legacyRule := doc.CreationRules[0]
	assert.Equal(t, "^metadata$", legacyRule["unencrypted_regex"])
	assert.Equal(t, float64(2), legacyRule["shamir_threshold"])
	assert.Equal(t, []any{map[string]any{"age": []any{legacy}}}, legacyRule["key_groups"])
	assert.NotContains(t, legacyRule, "age")

	stagingRule := doc.CreationRules[1]
	assert.Equal(t, "FBC7B9E2A4F9289AC0C1D4843D16CEE4A27381B4", stagingRule["pgp"])
	assert.Equal(t, stagingRecipient, stagingRule["age"])

	assert.Equal(t, "dev", doc.CreationRules[2]["environment"])

	got, ok, err := cfg.RecipientFor("staging")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stagingRecipient, got)

	got, ok, err = cfg.RecipientFor("dev")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, devRecipient, got)
}

func TestFileRecipientConfig_SetRejectsMalformedRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("creation_rules: everything\n"), 0o644))

	err := NewFileRecipientConfig(path).SetRecipient("dev", newRecipient(t))
	assert.ErrorContains(t, err, "creation_rules must be a list")
}
