// Package commands contains CLI command implementations for the application.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// ParseEnvironment checks that name is a valid environment and one of known.
func ParseEnvironment(name string, known []string) (keysDomain.Environment, error) {
	env := keysDomain.Environment(strings.TrimSpace(name))
	if err := env.Validate(); err != nil {
		return "", err
	}
	if !slices.Contains(known, string(env)) {
		return "", fmt.Errorf(
			"%w: %s (known environments: %s)",
			keysDomain.ErrInvalidEnvironment,
			env,
			strings.Join(known, ", "),
		)
	}
	return env, nil
}

// ParseEnvironments applies ParseEnvironment to every name, dropping duplicates.
func ParseEnvironments(names []string, known []string) ([]keysDomain.Environment, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one environment is required", keysDomain.ErrInvalidEnvironment)
	}
	envs := make([]keysDomain.Environment, 0, len(names))
	for _, name := range names {
		env, err := ParseEnvironment(name, known)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(envs, env) {
			envs = append(envs, env)
		}
	}
	return envs, nil
}

// validateFormat rejects output formats other than text and json.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(writer io.Writer, v any) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to output JSON: %w", err)
	}
	return nil
}
