package harness

import (
	"encoding/json"
	"fmt"
	"regexp"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/pyx-industries/julee/internal/provenance"
	"github.com/pyx-industries/julee/internal/value"
)

// contentHashPattern matches content-addressed identifiers (SHA-256 hex).
// Goldens assert lineage structure, not hash values, so these are redacted.
var contentHashPattern = regexp.MustCompile(`[0-9a-f]{64}`)

// snapshot is the golden-file shape: lineage structure with stable fields
// only. Timestamps, durations, and worker IDs are omitted; content hashes are
// redacted.
type snapshot struct {
	Scenario string          `json:"scenario"`
	Status   string          `json:"status"`
	Response any             `json:"response,omitempty"`
	Failure  string          `json:"failure,omitempty"`
	Lineage  lineageSnapshot `json:"lineage"`
}

type lineageSnapshot struct {
	Pipeline string         `json:"pipeline"`
	Status   string         `json:"status"`
	Input    any            `json:"input"`
	Result   any            `json:"result,omitempty"`
	Failure  string         `json:"failure,omitempty"`
	Steps    []stepSnapshot `json:"steps"`
}

type stepSnapshot struct {
	Seq       int64            `json:"seq"`
	Operation string           `json:"operation"`
	Status    string           `json:"status"`
	Attempts  int              `json:"attempts"`
	Input     any              `json:"input"`
	Output    any              `json:"output,omitempty"`
	Failure   string           `json:"failure,omitempty"`
	Child     *lineageSnapshot `json:"child,omitempty"`
}

// RunWithGolden runs a scenario, verifies its expectations, and compares the
// lineage snapshot against testdata/<name>.golden. Regenerate goldens with
// go test -update.
func RunWithGolden(t *testing.T, s *Scenario) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if err := Verify(result); err != nil {
		t.Fatalf("verify scenario: %v", err)
	}

	snap := snapshot{
		Scenario: s.Name,
		Status:   result.Status,
		Response: objectToAny(result.Response),
		Failure:  redact(result.Failure),
		Lineage:  lineageToSnapshot(result.Lineage),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, s.Name, append(data, '\n'))
}

func lineageToSnapshot(lin *provenance.Lineage) lineageSnapshot {
	snap := lineageSnapshot{
		Pipeline: lin.Pipeline,
		Status:   lin.Status,
		Input:    objectToAny(lin.Input),
		Result:   objectToAny(lin.Result),
		Failure:  redact(lin.Failure),
	}
	for _, step := range lin.Steps {
		ss := stepSnapshot{
			Seq:       step.Seq,
			Operation: step.Operation,
			Status:    step.Status,
			Attempts:  step.Attempts,
			Input:     objectToAny(step.Input),
			Output:    objectToAny(step.Output),
			Failure:   redact(step.Failure),
		}
		if step.Child != nil {
			child := lineageToSnapshot(step.Child)
			ss.Child = &child
		}
		snap.Steps = append(snap.Steps, ss)
	}
	return snap
}

// objectToAny converts a value.Object to plain Go values for JSON encoding,
// redacting content hashes. Returns nil for nil objects so omitempty applies.
func objectToAny(obj value.Object) any {
	if obj == nil {
		return nil
	}
	return valueToAny(obj)
}

func valueToAny(v value.Value) any {
	switch val := v.(type) {
	case value.Null:
		return nil
	case value.String:
		return redact(string(val))
	case value.Int:
		return int64(val)
	case value.Bool:
		return bool(val)
	case value.Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = valueToAny(elem)
		}
		return out
	case value.Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = valueToAny(elem)
		}
		return out
	default:
		return fmt.Sprintf("(unsupported %T)", v)
	}
}

func redact(s string) string {
	return contentHashPattern.ReplaceAllString(s, "(content-hash)")
}
