package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"mcp-frete-sistema/internal/contract"
)

// Build generates the registry from the contract schemas.
func Build(version string) (*ToolRegistry, error) {
	reg := &ToolRegistry{
		Version:     version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Tools:       make([]ToolDefinition, 0, len(toolSpecs)),
	}
	for _, spec := range toolSpecs {
		def := spec.def
		def.Version = version
		def.ErrorCodes = append([]string(nil), spec.def.ErrorCodes...)
		def.Tags = append([]string(nil), spec.def.Tags...)

		var err error
		if def.InputSchema, err = schemaMap(spec.input); err != nil {
			return nil, err
		}
		if def.OutputSchema, err = schemaMap(spec.output); err != nil {
			return nil, err
		}
		reg.Tools = append(reg.Tools, def)
	}
	return reg, nil
}

func schemaMap(name string) (map[string]interface{}, error) {
	raw, err := contract.Schema(name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return m, nil
}

func LoadRegistry(path string) (*ToolRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ToolRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// SaveRegistry writes reg as indented JSON, creating the directory when needed.
func SaveRegistry(reg *ToolRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Validate checks the structural rules of a registry: at least one tool, unique IDs and
// task types, required fields and both schemas present.
func Validate(reg *ToolRegistry) error {
	if len(reg.Tools) == 0 {
		return fmt.Errorf("registry contains no tools")
	}
	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, tool := range reg.Tools {
		if tool.ID == "" {
			return fmt.Errorf("tool missing required field: ID")
		}
		if ids[tool.ID] {
			return fmt.Errorf("duplicate tool ID: %s", tool.ID)
		}
		ids[tool.ID] = true

		if tool.TaskType == "" {
			return fmt.Errorf("tool %s missing required field: TaskType", tool.ID)
		}
		if taskTypes[tool.TaskType] {
			return fmt.Errorf("duplicate task type: %s", tool.TaskType)
		}
		taskTypes[tool.TaskType] = true

		if tool.DisplayName == "" {
			return fmt.Errorf("tool %s missing required field: DisplayName", tool.ID)
		}
		if len(tool.InputSchema) == 0 {
			return fmt.Errorf("tool %s missing input schema", tool.ID)
		}
		if len(tool.OutputSchema) == 0 {
			return fmt.Errorf("tool %s missing output schema", tool.ID)
		}
	}
	return nil
}

// Drift lists the differences between a stored registry and a freshly built one, ignoring
// version and timestamps.
func Drift(stored, fresh *ToolRegistry) []string {
	var diffs []string
	for _, want := range fresh.Tools {
		got, ok := stored.Tool(want.TaskType)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: missing from registry", want.TaskType))
			continue
		}
		if !reflect.DeepEqual(got.InputSchema, want.InputSchema) {
			diffs = append(diffs, fmt.Sprintf("%s: input schema changed", want.TaskType))
		}
		if !reflect.DeepEqual(got.OutputSchema, want.OutputSchema) {
			diffs = append(diffs, fmt.Sprintf("%s: output schema changed", want.TaskType))
		}
		if !reflect.DeepEqual(got.ErrorCodes, want.ErrorCodes) {
			diffs = append(diffs, fmt.Sprintf("%s: error codes changed", want.TaskType))
		}
	}
	for _, got := range stored.Tools {
		if _, ok := fresh.Tool(got.TaskType); !ok {
			diffs = append(diffs, fmt.Sprintf("%s: unknown tool", got.TaskType))
		}
	}
	return diffs
}
