package engine

import (
	"context"

	"github.com/pyx-industries/julee/internal/value"
)

// Executor is the surface a pipeline body sees. Every side effect in a body
// goes through it; everything else in the body must be deterministic.
//
// ExecuteStep submits one activity call as a durable step: recorded before
// dispatch, retried per policy, and on replay answered from history without
// re-running the activity. ExecuteChild dispatches a nested pipeline the same
// way. Heartbeat is a cancellation checkpoint for long stretches of
// deterministic work between steps.
type Executor interface {
	ExecuteStep(ctx context.Context, name string, input value.Object, opts StepOptions) (value.Object, error)
	ExecuteChild(ctx context.Context, pipeline string, input value.Object) (value.Object, error)
	Heartbeat(note string) error
}

// Pipeline is a registered durable workflow.
//
// Run must be deterministic: no wall clock, no randomness, no I/O outside
// Executor calls. The engine re-runs Run from the start on resume and feeds
// recorded step results back in issue order.
type Pipeline interface {
	Name() string
	Run(ctx context.Context, exec Executor, input value.Object) (value.Object, error)
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc struct {
	PipelineName string
	Body         func(ctx context.Context, exec Executor, input value.Object) (value.Object, error)
}

func (p PipelineFunc) Name() string { return p.PipelineName }

func (p PipelineFunc) Run(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
	return p.Body(ctx, exec, input)
}

// Activity is a registered side-effecting operation. The engine invokes it on
// a worker, once per attempt, with the attempt's bounded context.
type Activity func(actx *ActivityContext, input value.Object) (value.Object, error)

// ActivityContext carries per-attempt execution details into an activity.
type ActivityContext struct {
	ctx      context.Context
	workerID string
	attempt  int
}

// NewActivityContext builds an ActivityContext outside the engine, for unit
// tests that invoke an activity directly.
func NewActivityContext(ctx context.Context, workerID string, attempt int) *ActivityContext {
	return &ActivityContext{ctx: ctx, workerID: workerID, attempt: attempt}
}

// Context returns the attempt's context, already bounded by the step's
// StartToClose timeout when one is set.
func (a *ActivityContext) Context() context.Context {
	return a.ctx
}

// WorkerID identifies the worker running this attempt.
func (a *ActivityContext) WorkerID() string {
	return a.workerID
}

// Attempt is the 1-based attempt number.
func (a *ActivityContext) Attempt() int {
	return a.attempt
}

// Heartbeat records liveness and observes cancellation. Long-running
// activities call it periodically; a non-nil return means the attempt should
// stop and return that error.
func (a *ActivityContext) Heartbeat(note string) error {
	_ = note
	return a.ctx.Err()
}
