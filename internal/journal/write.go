package journal

import (
	"context"
	"fmt"

	"github.com/pyx-industries/julee/internal/value"
)

// CreateExecution inserts an execution record in running status.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - resuming a crashed
// execution re-issues the insert harmlessly.
func (j *Journal) CreateExecution(ctx context.Context, exec Execution) error {
	inputJSON, err := marshalObject(exec.Input)
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}

	var parentID, parentSeq any
	if exec.ParentID != "" {
		parentID = exec.ParentID
		parentSeq = exec.ParentSeq
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO executions
		(id, pipeline, input, status, parent_execution_id, parent_seq, started_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		exec.ID,
		exec.Pipeline,
		inputJSON,
		ExecutionRunning,
		parentID,
		parentSeq,
		exec.StartedAtMS,
	)
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}

	return nil
}

// CompleteExecution finalizes an execution with its result.
// Only a running execution transitions; completing twice is a no-op so
// replay of a finished execution cannot rewrite history.
func (j *Journal) CompleteExecution(ctx context.Context, id string, result value.Object, endMS int64) error {
	resultJSON, err := marshalObject(result)
	if err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		UPDATE executions
		SET result = ?, status = ?, ended_at_ms = ?
		WHERE id = ? AND status = ?
	`, resultJSON, ExecutionCompleted, endMS, id, ExecutionRunning)
	if err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}
	return nil
}

// FailExecution finalizes an execution with a failure message and kind.
func (j *Journal) FailExecution(ctx context.Context, id, failure, kind string, endMS int64) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE executions
		SET failure = ?, failure_kind = ?, status = ?, ended_at_ms = ?
		WHERE id = ? AND status = ?
	`, failure, kind, ExecutionFailed, endMS, id, ExecutionRunning)
	if err != nil {
		return fmt.Errorf("fail execution: %w", err)
	}
	return nil
}

// ClaimStep atomically claims a step slot for (execution_id, seq).
//
// Returns inserted=true if this call claimed the slot, or inserted=false with
// the existing record if the step was already recorded - the replay path.
// The unique constraint on (execution_id, seq) is what makes a step happen
// at most once per execution.
func (j *Journal) ClaimStep(ctx context.Context, step Step) (existing Step, inserted bool, err error) {
	inputJSON, err := marshalObject(step.Input)
	if err != nil {
		return Step{}, false, fmt.Errorf("claim step: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Step{}, false, fmt.Errorf("claim step: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO steps
		(execution_id, seq, name, input, input_hash, status, started_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id, seq) DO NOTHING
	`,
		step.ExecutionID,
		step.Seq,
		step.Name,
		inputJSON,
		step.InputHash,
		StepRunning,
		step.StartedAtMS,
	)
	if err != nil {
		return Step{}, false, fmt.Errorf("claim step: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return Step{}, false, fmt.Errorf("claim step: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Already recorded - fetch the existing step for the replay check.
		row := tx.QueryRowContext(ctx, stepSelect+`
			WHERE execution_id = ? AND seq = ?
		`, step.ExecutionID, step.Seq)
		existing, err = scanStepRow(row)
		if err != nil {
			return Step{}, false, fmt.Errorf("claim step: select existing: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Step{}, false, fmt.Errorf("claim step: commit (existing): %w", err)
		}
		return existing, false, nil
	}

	if err := tx.Commit(); err != nil {
		return Step{}, false, fmt.Errorf("claim step: commit: %w", err)
	}

	step.Status = StepRunning
	return step, true, nil
}

// CompleteStep records a step's successful output.
func (j *Journal) CompleteStep(ctx context.Context, executionID string, seq int64, output value.Object, workerID string, attempts int, endMS int64) error {
	outputJSON, err := marshalObject(output)
	if err != nil {
		return fmt.Errorf("complete step: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		UPDATE steps
		SET output = ?, status = ?, attempts = ?, worker_id = ?, ended_at_ms = ?
		WHERE execution_id = ? AND seq = ? AND status = ?
	`, outputJSON, StepCompleted, attempts, workerID, endMS, executionID, seq, StepRunning)
	if err != nil {
		return fmt.Errorf("complete step: %w", err)
	}
	return nil
}

// FailStep records a step's terminal failure.
func (j *Journal) FailStep(ctx context.Context, executionID string, seq int64, failure, kind, workerID string, attempts int, endMS int64) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE steps
		SET failure = ?, failure_kind = ?, status = ?, attempts = ?, worker_id = ?, ended_at_ms = ?
		WHERE execution_id = ? AND seq = ? AND status = ?
	`, failure, kind, StepFailed, attempts, workerID, endMS, executionID, seq, StepRunning)
	if err != nil {
		return fmt.Errorf("fail step: %w", err)
	}
	return nil
}

// LinkChildExecution marks a step as a nested dispatch of the given child
// execution. Written before the child runs so a crash between the two leaves
// a resumable trail.
func (j *Journal) LinkChildExecution(ctx context.Context, executionID string, seq int64, childID string) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE steps
		SET child_execution_id = ?
		WHERE execution_id = ? AND seq = ?
	`, childID, executionID, seq)
	if err != nil {
		return fmt.Errorf("link child execution: %w", err)
	}
	return nil
}

// RecordAttempt appends one attempt record for a step.
// Uses ON CONFLICT DO NOTHING so a crash between attempt recording and step
// finalization cannot produce duplicates on resume.
func (j *Journal) RecordAttempt(ctx context.Context, att Attempt) error {
	var errText any
	if att.Error != "" {
		errText = att.Error
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO step_attempts
		(execution_id, seq, attempt, outcome, error, worker_id, started_at_ms, ended_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id, seq, attempt) DO NOTHING
	`,
		att.ExecutionID,
		att.Seq,
		att.Attempt,
		att.Outcome,
		errText,
		att.WorkerID,
		att.StartedAtMS,
		att.EndedAtMS,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}
