package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/value"
)

// runContext is the Executor handed to one pass of a pipeline body.
//
// Each pass (first run or replay) gets a fresh runContext with a fresh
// logical clock. Because the body is deterministic, the same sequence of
// ExecuteStep/ExecuteChild calls produces the same seq numbers, which is how
// replayed calls find their recorded slots.
type runContext struct {
	engine *Engine
	execID string
	clock  *Clock
	logger *slog.Logger
	ctx    context.Context
}

// ExecuteStep records, dispatches, and returns one activity call.
//
// The claim on (execution, seq) is the durability pivot: the first pass
// inserts and dispatches; a replay observes the existing record, verifies the
// body issued the same call, and returns the recorded outcome without
// re-running the activity.
func (rc *runContext) ExecuteStep(ctx context.Context, name string, input value.Object, opts StepOptions) (value.Object, error) {
	seq := rc.clock.Next()

	if input == nil {
		input = value.Object{}
	}
	inputHash, err := value.InputHash(input)
	if err != nil {
		return nil, fmt.Errorf("step %s input: %w", name, err)
	}

	existing, inserted, err := rc.engine.journal.ClaimStep(ctx, journal.Step{
		ExecutionID: rc.execID,
		Seq:         seq,
		Name:        name,
		Input:       input,
		InputHash:   inputHash,
		StartedAtMS: rc.engine.timeSource.NowMS(),
	})
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}

	if !inserted {
		return rc.replayStep(ctx, seq, name, inputHash, existing, opts)
	}

	rc.logger.Debug("step claimed", "seq", seq, "step", name)
	return rc.engine.runStep(ctx, rc.execID, seq, name, input, opts, 1)
}

// replayStep resolves a step whose slot already holds a record.
func (rc *runContext) replayStep(ctx context.Context, seq int64, name, inputHash string, existing journal.Step, opts StepOptions) (value.Object, error) {
	if existing.Name != name || existing.InputHash != inputHash {
		return nil, &Error{
			Code: CodeNonDeterminism,
			Message: fmt.Sprintf("replay diverged: history has %s (hash %s), body issued %s (hash %s)",
				existing.Name, existing.InputHash, name, inputHash),
			ExecutionID: rc.execID,
			StepName:    name,
			Seq:         seq,
		}
	}

	switch existing.Status {
	case journal.StepCompleted:
		rc.logger.Debug("step replayed from history", "seq", seq, "step", name)
		return existing.Output, nil

	case journal.StepFailed:
		return nil, &Error{
			Code:        CodeStepFailed,
			Message:     existing.Failure,
			ExecutionID: rc.execID,
			StepName:    name,
			Seq:         seq,
		}

	default:
		// Claimed but never finalized: the previous process crashed mid-step.
		// Continue the attempt loop where it left off.
		attempts, err := rc.engine.journal.AttemptsForStep(ctx, rc.execID, seq)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", name, err)
		}
		rc.logger.Debug("step resumed mid-flight", "seq", seq, "step", name, "prior_attempts", len(attempts))
		if existing.ChildID != "" {
			return rc.resumeChild(ctx, seq, existing.ChildID)
		}
		return rc.engine.runStep(ctx, rc.execID, seq, name, existing.Input, opts, len(attempts)+1)
	}
}

// ExecuteChild dispatches a nested pipeline as a durable step. The child gets
// its own execution record linked back to this step; its result is also
// recorded as the step output so replay never re-enters the child.
func (rc *runContext) ExecuteChild(ctx context.Context, pipeline string, input value.Object) (value.Object, error) {
	seq := rc.clock.Next()
	stepName := "pipeline:" + pipeline

	if input == nil {
		input = value.Object{}
	}
	inputHash, err := value.InputHash(input)
	if err != nil {
		return nil, fmt.Errorf("child %s input: %w", pipeline, err)
	}

	existing, inserted, err := rc.engine.journal.ClaimStep(ctx, journal.Step{
		ExecutionID: rc.execID,
		Seq:         seq,
		Name:        stepName,
		Input:       input,
		InputHash:   inputHash,
		StartedAtMS: rc.engine.timeSource.NowMS(),
	})
	if err != nil {
		return nil, fmt.Errorf("child %s: %w", pipeline, err)
	}

	if !inserted {
		if existing.Name != stepName || existing.InputHash != inputHash {
			return nil, &Error{
				Code: CodeNonDeterminism,
				Message: fmt.Sprintf("replay diverged: history has %s (hash %s), body issued %s (hash %s)",
					existing.Name, existing.InputHash, stepName, inputHash),
				ExecutionID: rc.execID,
				StepName:    stepName,
				Seq:         seq,
			}
		}
		switch existing.Status {
		case journal.StepCompleted:
			return existing.Output, nil
		case journal.StepFailed:
			return nil, &Error{
				Code:        CodeStepFailed,
				Message:     existing.Failure,
				ExecutionID: rc.execID,
				StepName:    stepName,
				Seq:         seq,
			}
		default:
			if existing.ChildID != "" {
				return rc.resumeChild(ctx, seq, existing.ChildID)
			}
			// Claimed but the child was never created; fall through and
			// create it now.
		}
	}

	p, ok := rc.engine.pipelines[pipeline]
	if !ok {
		err := &Error{Code: CodeUnknownPipeline, Message: "pipeline not registered", ExecutionID: rc.execID, StepName: stepName, Seq: seq}
		rc.finalizeChildStep(ctx, seq, nil, err)
		return nil, err
	}

	childID := rc.engine.idGen.Generate()
	if err := rc.engine.journal.CreateExecution(ctx, journal.Execution{
		ID:          childID,
		Pipeline:    pipeline,
		Input:       input,
		ParentID:    rc.execID,
		ParentSeq:   seq,
		StartedAtMS: rc.engine.timeSource.NowMS(),
	}); err != nil {
		return nil, fmt.Errorf("child %s: %w", pipeline, err)
	}
	if err := rc.engine.journal.LinkChildExecution(ctx, rc.execID, seq, childID); err != nil {
		return nil, fmt.Errorf("child %s: %w", pipeline, err)
	}

	rc.logger.Debug("child dispatched", "seq", seq, "child_pipeline", pipeline, "child_execution", childID)
	result, runErr := rc.engine.runExecution(ctx, childID, p, input)
	rc.finalizeChildStep(ctx, seq, result, runErr)
	return result, runErr
}

// resumeChild re-enters a child execution recorded before a crash.
func (rc *runContext) resumeChild(ctx context.Context, seq int64, childID string) (value.Object, error) {
	h, err := rc.engine.Resume(ctx, childID)
	if err != nil {
		return nil, err
	}
	result, runErr := h.Await(ctx)
	rc.finalizeChildStep(ctx, seq, result, runErr)
	return result, runErr
}

// finalizeChildStep records a child's outcome as the parent step's result.
func (rc *runContext) finalizeChildStep(ctx context.Context, seq int64, result value.Object, runErr error) {
	endMS := rc.engine.timeSource.NowMS()
	if runErr != nil {
		kind := failureKind(runErr)
		if err := rc.engine.journal.FailStep(context.WithoutCancel(ctx), rc.execID, seq, runErr.Error(), kind, "", 1, endMS); err != nil {
			rc.logger.Error("child step failure record write failed", "seq", seq, "error", err)
		}
		return
	}
	if err := rc.engine.journal.CompleteStep(ctx, rc.execID, seq, result, "", 1, endMS); err != nil {
		rc.logger.Error("child step completion record write failed", "seq", seq, "error", err)
	}
}

// Heartbeat is a cancellation checkpoint for deterministic work between
// steps. Returns a structured cancellation error once the execution's context
// is done.
func (rc *runContext) Heartbeat(note string) error {
	if err := rc.ctx.Err(); err != nil {
		return &Error{
			Code:        CodeCanceled,
			Message:     fmt.Sprintf("canceled at heartbeat %q", note),
			ExecutionID: rc.execID,
			Seq:         rc.clock.Current(),
			Cause:       err,
		}
	}
	return nil
}
