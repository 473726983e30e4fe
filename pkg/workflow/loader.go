package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dukex/deskflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a definition document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for definition files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported definition format")

// FormatOf infers the document format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseDefinition decodes a definition document, checks it against the definition schema
// and validates its step graph.
func ParseDefinition(data []byte, format Format) (*models.WorkflowDefinition, error) {
	document, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	err = ValidateDocument(document)
	if err != nil {
		return nil, err
	}

	var definition models.WorkflowDefinition

	decoder := json.NewDecoder(bytes.NewReader(document))
	decoder.UseNumber()

	err = decoder.Decode(&definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}

	normalizeNumbers(&definition)

	err = Validate(&definition)
	if err != nil {
		return nil, err
	}

	return &definition, nil
}

func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var document map[string]any

		err := yaml.Unmarshal(data, &document)
		if err != nil {
			return nil, fmt.Errorf("failed to parse yaml definition: %w", err)
		}

		encoded, err := json.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("failed to convert yaml definition: %w", err)
		}

		return encoded, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// normalizeNumbers turns json.Number values in free-form maps into int64 or float64.
func normalizeNumbers(definition *models.WorkflowDefinition) {
	definition.Trigger = normalizeMap(definition.Trigger)
	definition.Variables = normalizeMap(definition.Variables)

	for _, step := range definition.Steps {
		if step == nil {
			continue
		}

		if step.Condition != nil {
			step.Condition.Value = normalize(step.Condition.Value)
		}

		if step.Action != nil {
			step.Action.Params = normalizeMap(step.Action.Params)
		}
	}
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalize(v)
	}

	return m
}

func normalize(v any) any {
	switch typed := v.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}

		f, _ := typed.Float64()

		return f
	case map[string]any:
		return normalizeMap(typed)
	case []any:
		for i := range typed {
			typed[i] = normalize(typed[i])
		}

		return typed
	default:
		return v
	}
}

// LoadDefinition reads and parses a JSON or YAML definition file.
func LoadDefinition(path string) (*models.WorkflowDefinition, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	definition, err := ParseDefinition(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return definition, nil
}

// LoadDefinitions parses every JSON and YAML file directly under dir, in file name order.
func LoadDefinitions(dir string) ([]*models.WorkflowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory %s: %w", dir, err)
	}

	var definitions []*models.WorkflowDefinition

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if _, err := FormatOf(entry.Name()); err != nil {
			continue
		}

		names = append(names, entry.Name())
	}

	slices.Sort(names)

	for _, name := range names {
		definition, err := LoadDefinition(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		definitions = append(definitions, definition)
	}

	return definitions, nil
}
