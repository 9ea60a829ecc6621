package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pyx-industries/julee/internal/value"
)

// Scenario is one YAML-defined conformance case: a pipeline, its input,
// injected activity failures, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description,omitempty"`

	// Pipeline is the registered pipeline name to start.
	Pipeline string `yaml:"pipeline"`

	// OrphanHandling selects the capture pipeline's orphan wiring:
	// "none", "log", or "notify". Default "none".
	OrphanHandling string `yaml:"orphan_handling,omitempty"`

	// Input is the pipeline input. YAML scalars map to the constrained value
	// model; floats are rejected.
	Input map[string]any `yaml:"input"`

	// Failures are injected activity faults, applied before the real
	// implementation runs.
	Failures []Failure `yaml:"failures,omitempty"`

	// Expect is the required outcome.
	Expect Expect `yaml:"expect"`
}

// Failure injects faults into one activity.
type Failure struct {
	// Activity is the activity name to sabotage.
	Activity string `yaml:"activity"`

	// Attempts is how many initial attempts fail. Ignored when Terminal.
	Attempts int `yaml:"attempts,omitempty"`

	// Error is the injected error text.
	Error string `yaml:"error"`

	// Terminal makes the injected failure non-retryable; every attempt fails.
	Terminal bool `yaml:"terminal,omitempty"`
}

// Expect is the scenario's required outcome.
type Expect struct {
	// Status is "completed" or "failed".
	Status string `yaml:"status"`

	// ErrorContains must appear in the failure text when Status is "failed".
	ErrorContains string `yaml:"error_contains,omitempty"`

	// Result fields that must match the response exactly (subset match).
	Result map[string]any `yaml:"result,omitempty"`
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if s.Pipeline == "" {
		return nil, fmt.Errorf("scenario %s: pipeline is required", path)
	}
	switch s.Expect.Status {
	case "completed", "failed":
	default:
		return nil, fmt.Errorf("scenario %s: expect.status must be completed or failed, got %q", path, s.Expect.Status)
	}

	return &s, nil
}

// LoadScenarios reads every *.yaml scenario under dir, sorted by filename.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var scenarios []*Scenario
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// inputObject converts the YAML input map into the constrained value model.
func (s *Scenario) inputObject() (value.Object, error) {
	if s.Input == nil {
		return value.Object{}, nil
	}
	v, err := value.ToValue(normalizeYAML(s.Input))
	if err != nil {
		return nil, fmt.Errorf("scenario %s input: %w", s.Name, err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("scenario %s input: not an object", s.Name)
	}
	return obj, nil
}

// normalizeYAML rewrites yaml.v3 decoding artifacts (map[string]any is fine,
// but nested []any elements may be maps again) into the shapes ToValue takes.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeYAML(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeYAML(elem)
		}
		return out
	default:
		return v
	}
}
