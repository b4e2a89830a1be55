// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	"filippo.io/age"
	validation "github.com/jellydator/validation"
	k8svalidation "k8s.io/apimachinery/pkg/util/validation"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// ResourceName validates a Kubernetes object or namespace name: lower-case
// alphanumerics and '-', starting and ending with an alphanumeric, at most 63 characters.
var ResourceName = validation.NewStringRuleWithError(
	func(s string) bool {
		return len(k8svalidation.IsDNS1123Label(s)) == 0
	},
	validation.NewError("validation_resource_name", "must be a valid resource name (RFC 1123 label)"),
)

// SecretKey validates a key of a Secret's data map.
var SecretKey = validation.NewStringRuleWithError(
	func(s string) bool {
		return len(k8svalidation.IsConfigMapKey(s)) == 0
	},
	validation.NewError("validation_secret_key", "must consist of alphanumerics, '-', '_' or '.'"),
)

// AgeRecipient validates an age X25519 public key ("age1...").
var AgeRecipient = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := age.ParseX25519Recipient(s)
		return err == nil
	},
	validation.NewError("validation_age_recipient", "must be a valid age recipient"),
)

// Regexp validates that a string compiles as a regular expression.
var Regexp = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := regexp.Compile(s)
		return err == nil
	},
	validation.NewError("validation_regexp", "must be a valid regular expression"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
