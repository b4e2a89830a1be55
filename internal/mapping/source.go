// Package mapping turns a flat set of name=value source values into
// namespaced secret records using a rule table and a default rule.
package mapping

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/joho/godotenv"
)

// SourceValue is one named value of the trusted input set.
type SourceValue struct {
	Name  string
	Value string
}

// ParseSource reads line-oriented name=value pairs. Comments, quoting and
// "export" prefixes follow dotenv conventions. The result is sorted by name.
func ParseSource(r io.Reader) ([]SourceValue, error) {
	pairs, err := godotenv.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source values: %w", err)
	}
	return fromMap(pairs), nil
}

// LoadSourceFiles parses every file in order; a later file overrides names
// set by an earlier one.
func LoadSourceFiles(paths ...string) ([]SourceValue, error) {
	merged := make(map[string]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
		pairs, err := godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for name, value := range pairs {
			merged[name] = value
		}
	}
	return fromMap(merged), nil
}

func fromMap(pairs map[string]string) []SourceValue {
	values := make([]SourceValue, 0, len(pairs))
	for name, value := range pairs {
		values = append(values, SourceValue{Name: name, Value: value})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Name < values[j].Name
	})
	return values
}
