package journal

import (
	"context"
	"database/sql"
	"fmt"
)

const executionSelect = `
	SELECT id, pipeline, input, result, failure, failure_kind, status,
	       parent_execution_id, parent_seq, started_at_ms, ended_at_ms
	FROM executions
`

const stepSelect = `
	SELECT execution_id, seq, name, input, input_hash, output, failure,
	       failure_kind, status, attempts, worker_id, child_execution_id,
	       started_at_ms, ended_at_ms
	FROM steps
`

// GetExecution reads one execution by ID.
func (j *Journal) GetExecution(ctx context.Context, id string) (Execution, error) {
	row := j.db.QueryRowContext(ctx, executionSelect+`WHERE id = ?`, id)
	exec, err := scanExecutionRow(row)
	if err == sql.ErrNoRows {
		return Execution{}, fmt.Errorf("execution %s not found", id)
	}
	if err != nil {
		return Execution{}, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

// ListExecutions returns all executions ordered by start time then ID.
// The secondary key keeps order deterministic when timestamps collide.
func (j *Journal) ListExecutions(ctx context.Context) ([]Execution, error) {
	rows, err := j.db.QueryContext(ctx, executionSelect+`
		ORDER BY started_at_ms ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// IncompleteExecutions returns root executions still in running status -
// candidates for crash recovery via Resume.
func (j *Journal) IncompleteExecutions(ctx context.Context) ([]Execution, error) {
	rows, err := j.db.QueryContext(ctx, executionSelect+`
		WHERE status = ? AND parent_execution_id IS NULL
		ORDER BY started_at_ms ASC, id COLLATE BINARY ASC
	`, ExecutionRunning)
	if err != nil {
		return nil, fmt.Errorf("incomplete executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// GetStep reads the recorded step at (execution_id, seq).
// found=false means the pipeline body has run past its recorded history.
func (j *Journal) GetStep(ctx context.Context, executionID string, seq int64) (Step, bool, error) {
	row := j.db.QueryRowContext(ctx, stepSelect+`
		WHERE execution_id = ? AND seq = ?
	`, executionID, seq)

	step, err := scanStepRow(row)
	if err == sql.ErrNoRows {
		return Step{}, false, nil
	}
	if err != nil {
		return Step{}, false, fmt.Errorf("get step: %w", err)
	}
	return step, true, nil
}

// StepsForExecution returns an execution's steps in issue order.
func (j *Journal) StepsForExecution(ctx context.Context, executionID string) ([]Step, error) {
	rows, err := j.db.QueryContext(ctx, stepSelect+`
		WHERE execution_id = ?
		ORDER BY seq ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("steps for execution: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("steps for execution: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("steps for execution: %w", err)
	}
	return steps, nil
}

// AttemptsForStep returns a step's attempt records in attempt order.
func (j *Journal) AttemptsForStep(ctx context.Context, executionID string, seq int64) ([]Attempt, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT execution_id, seq, attempt, outcome, error, worker_id, started_at_ms, ended_at_ms
		FROM step_attempts
		WHERE execution_id = ? AND seq = ?
		ORDER BY attempt ASC
	`, executionID, seq)
	if err != nil {
		return nil, fmt.Errorf("attempts for step: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var att Attempt
		var errText sql.NullString
		if err := rows.Scan(
			&att.ExecutionID,
			&att.Seq,
			&att.Attempt,
			&att.Outcome,
			&errText,
			&att.WorkerID,
			&att.StartedAtMS,
			&att.EndedAtMS,
		); err != nil {
			return nil, fmt.Errorf("attempts for step: %w", err)
		}
		att.Error = errText.String
		attempts = append(attempts, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attempts for step: %w", err)
	}
	return attempts, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(s scanner) (Execution, error) {
	var exec Execution
	var inputJSON string
	var resultJSON, failure, failureKind, parentID sql.NullString
	var parentSeq, endedAt sql.NullInt64

	if err := s.Scan(
		&exec.ID,
		&exec.Pipeline,
		&inputJSON,
		&resultJSON,
		&failure,
		&failureKind,
		&exec.Status,
		&parentID,
		&parentSeq,
		&exec.StartedAtMS,
		&endedAt,
	); err != nil {
		return Execution{}, err
	}

	input, err := unmarshalObject(inputJSON)
	if err != nil {
		return Execution{}, err
	}
	exec.Input = input

	if resultJSON.Valid {
		result, err := unmarshalObject(resultJSON.String)
		if err != nil {
			return Execution{}, err
		}
		exec.Result = result
	}
	exec.Failure = failure.String
	exec.FailureKind = failureKind.String
	exec.ParentID = parentID.String
	exec.ParentSeq = parentSeq.Int64
	exec.EndedAtMS = endedAt.Int64

	return exec, nil
}

func scanExecutionRow(row *sql.Row) (Execution, error) {
	return scanExecution(row)
}

func collectExecutions(rows *sql.Rows) ([]Execution, error) {
	var execs []Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return execs, nil
}

func scanStep(s scanner) (Step, error) {
	var step Step
	var inputJSON string
	var outputJSON, failure, failureKind, workerID, childID sql.NullString
	var attempts sql.NullInt64
	var endedAt sql.NullInt64

	if err := s.Scan(
		&step.ExecutionID,
		&step.Seq,
		&step.Name,
		&inputJSON,
		&step.InputHash,
		&outputJSON,
		&failure,
		&failureKind,
		&step.Status,
		&attempts,
		&workerID,
		&childID,
		&step.StartedAtMS,
		&endedAt,
	); err != nil {
		return Step{}, err
	}

	input, err := unmarshalObject(inputJSON)
	if err != nil {
		return Step{}, err
	}
	step.Input = input

	if outputJSON.Valid {
		output, err := unmarshalObject(outputJSON.String)
		if err != nil {
			return Step{}, err
		}
		step.Output = output
	}
	step.Failure = failure.String
	step.FailureKind = failureKind.String
	step.Attempts = int(attempts.Int64)
	step.WorkerID = workerID.String
	step.ChildID = childID.String
	step.EndedAtMS = endedAt.Int64

	return step, nil
}

func scanStepRow(row *sql.Row) (Step, error) {
	return scanStep(row)
}
