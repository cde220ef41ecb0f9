package zpt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadModelFile reads a render model from a YAML or JSON file. Mappings
// become map[string]any and sequences []any, which path expressions
// traverse directly.
func LoadModelFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseModel(data)
}

// ParseModel parses YAML (or JSON, which is valid YAML) into a model.
// An empty document gives an empty model.
func ParseModel(data []byte) (map[string]any, error) {
	var model map[string]any
	if err := yaml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if model == nil {
		model = map[string]any{}
	}
	return model, nil
}
