package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario: a schema, a sequence of
// intents, and the expected outcome of each.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to the schema JSON document, relative to the
	// scenario file location.
	Schema string `yaml:"schema"`

	// Timestamp is the fixed clock value for the whole run, RFC 3339.
	// Defaults to DefaultTimestamp so golden files are byte-stable.
	Timestamp string `yaml:"timestamp,omitempty"`

	// Steps is the main flow: each step runs one intent.
	Steps []Step `yaml:"steps"`
}

// Step runs one intent and optionally checks its result.
type Step struct {
	// Intent is the action to run.
	Intent string `yaml:"intent"`

	// Input contains the intent's parameters.
	Input map[string]any `yaml:"input,omitempty"`

	// Resolve lists patches applied to the snapshot before this step,
	// representing out-of-band effect resolution. Paths are state.*
	// and ops are set/merge/unset, same as flow patches.
	Resolve []ResolvePatch `yaml:"resolve,omitempty"`

	// Expect specifies the expected outcome. If nil, the step just
	// advances the snapshot.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ResolvePatch is the YAML form of one effect-resolution patch.
type ResolvePatch struct {
	Op    string `yaml:"op"`
	Path  string `yaml:"path"`
	Value any    `yaml:"value,omitempty"`
}

// Expect specifies the expected outcome of one step. Data and Computed
// use subset semantics: only the listed fields are checked.
type Expect struct {
	Status      string         `yaml:"status"`
	Data        map[string]any `yaml:"data,omitempty"`
	Computed    map[string]any `yaml:"computed,omitempty"`
	ErrorCode   string         `yaml:"errorCode,omitempty"`
	Requirement string         `yaml:"requirement,omitempty"`
}

// DefaultTimestamp is the fixed clock value scenarios run under unless
// they specify their own.
const DefaultTimestamp = "2024-01-01T00:00:00Z"

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping a
// check. Relative paths inside the scenario resolve against the
// scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if !filepath.IsAbs(scenario.Schema) && scenario.Schema != "" {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Intent == "" {
			return fmt.Errorf("steps[%d]: intent is required", i)
		}
		for j, rp := range step.Resolve {
			switch rp.Op {
			case "set", "merge", "unset":
			default:
				return fmt.Errorf("steps[%d].resolve[%d]: unknown op %q", i, j, rp.Op)
			}
			if rp.Path == "" {
				return fmt.Errorf("steps[%d].resolve[%d]: path is required", i, j)
			}
		}
		if step.Expect != nil && step.Expect.Status == "" {
			return fmt.Errorf("steps[%d].expect: status is required", i)
		}
	}
	return nil
}
