package repository

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	validation "github.com/jellydator/validation"
	"sigs.k8s.io/yaml"

	"github.com/bizmatters/zerotouch-keys/internal/fsutil"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	customValidation "github.com/bizmatters/zerotouch-keys/internal/validation"
)

// DefaultEncryptedRegex selects the Secret fields that are encrypted.
const DefaultEncryptedRegex = "^(data|stringData)$"

const creationRulesKey = "creation_rules"

// CreationRule is one entry of the encryption-rule file.
type CreationRule struct {
	Environment    string `json:"environment,omitempty"`
	PathRegex      string `json:"path_regex,omitempty"`
	EncryptedRegex string `json:"encrypted_regex,omitempty"`
	Age            string `json:"age,omitempty"`
}

// Validate checks the rule fields.
func (r CreationRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Age, customValidation.AgeRecipient),
		validation.Field(&r.PathRegex, customValidation.Regexp),
		validation.Field(&r.EncryptedRegex, customValidation.Regexp),
	)
}

// EncryptionRules is the document stored in the encryption-rule file.
type EncryptionRules struct {
	CreationRules []CreationRule `json:"creation_rules"`
}

// FileRecipientConfig keeps the rules in a YAML file shaped like a SOPS
// .sops.yaml, one creation rule per environment. Rules and keys it does not
// model are left untouched.
type FileRecipientConfig struct {
	mu   sync.Mutex
	path string
}

// NewFileRecipientConfig creates a FileRecipientConfig for path.
func NewFileRecipientConfig(path string) *FileRecipientConfig {
	return &FileRecipientConfig{path: path}
}

// Path returns the file location.
func (c *FileRecipientConfig) Path() string {
	return c.path
}

func (c *FileRecipientConfig) RecipientFor(env keysDomain.Environment) (string, bool, error) {
	rule, ok, err := c.Rule(env)
	if err != nil || !ok || rule.Age == "" {
		return "", false, err
	}
	return rule.Age, true, nil
}

func (c *FileRecipientConfig) Rule(env keysDomain.Environment) (CreationRule, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rules, err := c.load()
	if err != nil {
		return CreationRule{}, false, err
	}
	for _, rule := range rules.CreationRules {
		if rule.Environment == string(env) {
			if err := rule.Validate(); err != nil {
				return CreationRule{}, false, fmt.Errorf("%s: rule for %s: %w", c.path, env,
					customValidation.WrapValidationError(err))
			}
			return rule, true, nil
		}
	}
	return CreationRule{}, false, nil
}

// SetRecipient records recipient as the age key of env's rule, appending a
// rule when env has none. Every other key of the file is written back as read.
func (c *FileRecipientConfig) SetRecipient(env keysDomain.Environment, recipient string) error {
	if err := customValidation.AgeRecipient.Validate(recipient); err != nil {
		return customValidation.WrapValidationError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.loadDocument()
	if err != nil {
		return err
	}

	var rules []any
	switch raw := doc[creationRulesKey].(type) {
	case nil:
	case []any:
		rules = raw
	default:
		return fmt.Errorf("failed to parse %s: %s must be a list", c.path, creationRulesKey)
	}

	updated := false
	for _, item := range rules {
		rule, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := rule["environment"].(string); name == string(env) {
			rule["age"] = recipient
			updated = true
		}
	}
	if !updated {
		rules = append(rules, map[string]any{
			"environment":     string(env),
			"path_regex":      fmt.Sprintf(`(^|/)%s/.*\.enc$`, regexp.QuoteMeta(string(env))),
			"encrypted_regex": DefaultEncryptedRegex,
			"age":             recipient,
		})
	}
	doc[creationRulesKey] = rules

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.path, err)
	}
	return fsutil.WriteFileAtomic(c.path, data, 0o644)
}

func (c *FileRecipientConfig) load() (*EncryptionRules, error) {
	data, err := c.read()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &EncryptionRules{}, nil
	}

	var rules EncryptionRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.path, err)
	}
	return &rules, nil
}

// loadDocument reads the file without a schema so unknown keys survive a rewrite.
func (c *FileRecipientConfig) loadDocument() (map[string]any, error) {
	data, err := c.read()
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	if data != nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", c.path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}
	return doc, nil
}

// read returns nil data when the file does not exist yet.
func (c *FileRecipientConfig) read() ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.path, err)
	}
	return data, nil
}
