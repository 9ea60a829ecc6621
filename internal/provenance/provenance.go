// Package provenance derives lineage from recorded execution history.
//
// The reader is strictly read-only over the journal: deriving provenance
// never touches business results, and a reader failure is the caller's
// problem alone.
package provenance

import (
	"context"
	"fmt"

	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/value"
)

// Step is one lineage entry: who did what, with which data, at what cost.
type Step struct {
	Seq        int64
	Operation  string
	Actor      string // worker ID that ran the successful attempt
	Input      value.Object
	Output     value.Object
	Failure    string
	Status     string
	Attempts   int
	DurationMS int64

	// Child is the sub-lineage when this step dispatched a nested pipeline.
	Child *Lineage
}

// Lineage is the ordered derivation record of one execution.
type Lineage struct {
	ExecutionID string
	Pipeline    string
	Status      string
	Input       value.Object
	Result      value.Object
	Failure     string
	DurationMS  int64
	Steps       []Step
}

// Reader derives lineages from a journal.
type Reader struct {
	journal *journal.Journal
}

// NewReader creates a Reader over the given journal.
func NewReader(j *journal.Journal) *Reader {
	return &Reader{journal: j}
}

// Lineage derives the full lineage tree for an execution, nested children
// included.
func (r *Reader) Lineage(ctx context.Context, executionID string) (*Lineage, error) {
	return r.lineage(ctx, executionID, make(map[string]bool))
}

func (r *Reader) lineage(ctx context.Context, executionID string, seen map[string]bool) (*Lineage, error) {
	if seen[executionID] {
		return nil, fmt.Errorf("lineage cycle at execution %s", executionID)
	}
	seen[executionID] = true

	exec, err := r.journal.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("derive lineage: %w", err)
	}

	lin := &Lineage{
		ExecutionID: exec.ID,
		Pipeline:    exec.Pipeline,
		Status:      exec.Status,
		Input:       exec.Input,
		Result:      exec.Result,
		Failure:     exec.Failure,
		DurationMS:  duration(exec.StartedAtMS, exec.EndedAtMS),
	}

	steps, err := r.journal.StepsForExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("derive lineage: %w", err)
	}

	for _, s := range steps {
		entry := Step{
			Seq:        s.Seq,
			Operation:  s.Name,
			Actor:      s.WorkerID,
			Input:      s.Input,
			Output:     s.Output,
			Failure:    s.Failure,
			Status:     s.Status,
			Attempts:   s.Attempts,
			DurationMS: duration(s.StartedAtMS, s.EndedAtMS),
		}
		if s.ChildID != "" {
			child, err := r.lineage(ctx, s.ChildID, seen)
			if err != nil {
				return nil, err
			}
			entry.Child = child
		}
		lin.Steps = append(lin.Steps, entry)
	}

	return lin, nil
}

// Attempts returns the attempt records behind one lineage step, for callers
// that want per-attempt actors and errors.
func (r *Reader) Attempts(ctx context.Context, executionID string, seq int64) ([]journal.Attempt, error) {
	return r.journal.AttemptsForStep(ctx, executionID, seq)
}

func duration(startMS, endMS int64) int64 {
	if endMS == 0 || endMS < startMS {
		return 0
	}
	return endMS - startMS
}
