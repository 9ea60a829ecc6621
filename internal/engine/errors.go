package engine

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a failure detected during engine execution.
//
// Engine errors include:
//   - Non-determinism: a replayed body issued a different step than history
//   - Cancellation: the execution was canceled at a checkpoint
//   - Step failure: an activity failed terminally or exhausted its retries
//   - Unknown activity/pipeline: a name with no registration
//
// Error includes structured fields for diagnostics and matching via errors.As.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// ExecutionID identifies the affected execution.
	ExecutionID string

	// StepName identifies the activity or pipeline involved, when known.
	StepName string

	// Seq is the step sequence number involved, or -1 when not applicable.
	Seq int64

	// Cause is the underlying error, when one exists.
	Cause error
}

// Code categorizes engine errors.
type Code string

const (
	// CodeNonDeterminism indicates a replayed pipeline body diverged from
	// its recorded history.
	CodeNonDeterminism Code = "NON_DETERMINISM"

	// CodeCanceled indicates the execution was canceled.
	CodeCanceled Code = "CANCELED"

	// CodeStepFailed indicates a step failed terminally.
	CodeStepFailed Code = "STEP_FAILED"

	// CodeUnknownActivity indicates a step named an unregistered activity.
	CodeUnknownActivity Code = "UNKNOWN_ACTIVITY"

	// CodeUnknownPipeline indicates a dispatch named an unregistered pipeline.
	CodeUnknownPipeline Code = "UNKNOWN_PIPELINE"

	// CodeExecutionNotFound indicates a resume or status query for an
	// execution ID with no journal record.
	CodeExecutionNotFound Code = "EXECUTION_NOT_FOUND"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StepName != "" && e.Seq >= 0:
		return fmt.Sprintf("%s: %s (execution=%s, step=%s, seq=%d)",
			e.Code, e.Message, e.ExecutionID, e.StepName, e.Seq)
	case e.ExecutionID != "":
		return fmt.Sprintf("%s: %s (execution=%s)", e.Code, e.Message, e.ExecutionID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsNonDeterminism reports whether err is a replay divergence error.
func IsNonDeterminism(err error) bool {
	return hasCode(err, CodeNonDeterminism)
}

// IsCanceled reports whether err is a cancellation error.
// Matches both the engine's structured error and raw context cancellation.
func IsCanceled(err error) bool {
	return hasCode(err, CodeCanceled) || errors.Is(err, context.Canceled)
}

// IsStepFailed reports whether err is a terminal step failure.
func IsStepFailed(err error) bool {
	return hasCode(err, CodeStepFailed)
}

func hasCode(err error, code Code) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// nonRetryableError marks an activity error as terminal.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string {
	return e.err.Error()
}

func (e *nonRetryableError) Unwrap() error {
	return e.err
}

// NonRetryable wraps err so the engine fails the step immediately instead of
// retrying. Business-rule violations use this; infrastructure faults do not.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsRetryable reports whether the engine may retry after err.
//
// Activity errors are retryable by default. Only a NonRetryable wrap anywhere
// in the chain, or context cancellation, makes an error terminal. Deadline
// expiry (a step timeout) stays retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nr *nonRetryableError
	if errors.As(err, &nr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
