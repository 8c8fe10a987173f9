package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names accepted by Parse.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ParseYAML decodes and normalizes a YAML game document.
func ParseYAML(data []byte) (*GameRules, error) {
	var rules GameRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode yaml game rules: %w", err)
	}
	return Normalize(&rules), nil
}

// ParseJSON decodes and normalizes a JSON game document.
func ParseJSON(data []byte) (*GameRules, error) {
	var rules GameRules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode json game rules: %w", err)
	}
	return Normalize(&rules), nil
}

// Parse decodes data in the given format. An empty format sniffs the first
// non-space byte: '{' selects JSON, anything else YAML.
func Parse(data []byte, format string) (*GameRules, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ParseJSON(data)
	case FormatYAML, "yml":
		return ParseYAML(data)
	case "":
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
			return ParseJSON(data)
		}
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported game rules format %q", format)
	}
}

// LoadFile reads a document from disk, choosing the decoder by extension.
func LoadFile(path string) (*GameRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game rules %s: %w", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	rules, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return rules, nil
}

// CanonicalJSON renders rules as JSON with a stable field order, used for
// fingerprints and storage.
func CanonicalJSON(rules *GameRules) ([]byte, error) {
	data, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encode game rules: %w", err)
	}
	return data, nil
}
