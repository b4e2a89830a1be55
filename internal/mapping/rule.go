package mapping

import (
	"fmt"
	"os"
	"regexp"

	validation "github.com/jellydator/validation"
	"sigs.k8s.io/yaml"

	customValidation "github.com/bizmatters/zerotouch-keys/internal/validation"
)

// Target is one destination of a matching rule. Empty Key and Namespace fall
// back to the default field key and the environment's namespace.
type Target struct {
	Secret    string `json:"secret"`
	Key       string `json:"key,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// Validate checks the target fields.
func (t Target) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Secret, validation.Required, customValidation.ResourceName),
		validation.Field(&t.Key, customValidation.SecretKey),
		validation.Field(&t.Namespace, customValidation.ResourceName),
	)
}

// Rule routes every source name matching Match (an anchored regular
// expression over the prefix-stripped name) to all of its targets.
type Rule struct {
	Match   string   `json:"match"`
	Targets []Target `json:"targets"`
	// Order becomes the OrderingHint of the records the rule produces.
	Order int `json:"order,omitempty"`

	re *regexp.Regexp
}

// Validate checks the rule and its targets.
func (r Rule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Match, validation.Required, customValidation.Regexp),
		validation.Field(&r.Targets, validation.Required),
	)
}

// Matches reports whether name is routed by the rule.
func (r *Rule) Matches(name string) bool {
	return r.re != nil && r.re.MatchString(name)
}

// Table is the mapping rule file. Rules are evaluated in order and every
// matching rule fires. Namespaces maps an environment to its default namespace.
type Table struct {
	Rules      []Rule            `json:"rules"`
	Namespaces map[string]string `json:"namespaces,omitempty"`
}

// Validate checks every rule and compiles the match expressions.
func (t *Table) Validate() error {
	for i := range t.Rules {
		if err := t.Rules[i].Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, customValidation.WrapValidationError(err))
		}
		re, err := regexp.Compile("^(?:" + t.Rules[i].Match + ")$")
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, customValidation.WrapValidationError(err))
		}
		t.Rules[i].re = re
	}
	for env, ns := range t.Namespaces {
		if err := customValidation.ResourceName.Validate(ns); err != nil {
			return fmt.Errorf("namespace of %s: %w", env, customValidation.WrapValidationError(err))
		}
	}
	return nil
}

// LoadTable reads and validates a mapping rule file. An empty path yields an
// empty table, which routes everything through the default rule.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return &Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping rules: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML or JSON mapping rule document.
func ParseTable(data []byte) (*Table, error) {
	var table Table
	if err := yaml.UnmarshalStrict(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse mapping rules: %w", customValidation.WrapValidationError(err))
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}
