package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/testutil"
	"github.com/pyx-industries/julee/internal/value"
)

func fastRetry(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		InitialInterval:   time.Millisecond,
		BackoffMultiplier: 1.0,
		MaximumInterval:   time.Millisecond,
		MaximumAttempts:   maxAttempts,
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *journal.Journal) {
	t.Helper()

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	base := []Option{
		WithWorkers(2),
		WithDefaultRetry(fastRetry(3)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	e := New(j, append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, j
}

// echoActivity returns its input with an added marker.
func echoActivity(marker string) Activity {
	return func(actx *ActivityContext, input value.Object) (value.Object, error) {
		out := value.Object{}
		for k, v := range input {
			out[k] = v
		}
		out["marker"] = value.String(marker)
		return out, nil
	}
}

func twoStepPipeline(calls *atomic.Int64) Pipeline {
	return PipelineFunc{
		PipelineName: "two-step",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			if calls != nil {
				calls.Add(1)
			}
			first, err := exec.ExecuteStep(ctx, "step.one", input, StepOptions{})
			if err != nil {
				return nil, err
			}
			second, err := exec.ExecuteStep(ctx, "step.two", first, StepOptions{})
			if err != nil {
				return nil, err
			}
			return second, nil
		},
	}
}

func TestStartRunsPipelineToCompletion(t *testing.T) {
	e, j := newTestEngine(t)
	e.RegisterActivity("step.one", echoActivity("one"))
	e.RegisterActivity("step.two", echoActivity("two"))
	e.RegisterPipeline(twoStepPipeline(nil))

	ctx := context.Background()
	h, err := e.Start(ctx, "two-step", value.Object{"doc": value.String("x")})
	require.NoError(t, err)

	result, err := h.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, value.String("two"), result["marker"])
	assert.Equal(t, value.String("x"), result["doc"])

	exec, err := j.GetExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, journal.ExecutionCompleted, exec.Status)
	assert.Equal(t, result, exec.Result)

	steps, err := j.StepsForExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "step.one", steps[0].Name)
	assert.Equal(t, "step.two", steps[1].Name)
	for _, step := range steps {
		assert.Equal(t, journal.StepCompleted, step.Status)
		assert.Equal(t, 1, step.Attempts)
		assert.NotEmpty(t, step.WorkerID)
	}
}

func TestStartUnknownPipeline(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Start(context.Background(), "nope", value.Object{})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeUnknownPipeline, ee.Code)
}

func TestUnknownActivityFailsExecution(t *testing.T) {
	e, j := newTestEngine(t)
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "bad-step",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "not.registered", input, StepOptions{})
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "bad-step", value.Object{})
	require.NoError(t, err)

	_, err = h.Await(ctx)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeUnknownActivity, ee.Code)

	exec, err := j.GetExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, journal.ExecutionFailed, exec.Status)
}

func TestRetryBoundExactlyNAttempts(t *testing.T) {
	e, j := newTestEngine(t)

	var invocations atomic.Int64
	e.RegisterActivity("flaky.always", func(actx *ActivityContext, input value.Object) (value.Object, error) {
		invocations.Add(1)
		return nil, fmt.Errorf("transient fault %d", actx.Attempt())
	})
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "always-fails",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "flaky.always", input, StepOptions{Retry: fastRetry(3)})
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "always-fails", value.Object{})
	require.NoError(t, err)

	_, err = h.Await(ctx)
	require.Error(t, err)
	assert.True(t, IsStepFailed(err))
	assert.Equal(t, int64(3), invocations.Load())

	attempts, err := j.AttemptsForStep(ctx, h.ExecutionID, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 3, "history shows exactly MaximumAttempts attempts")
	for i, att := range attempts {
		assert.Equal(t, i+1, att.Attempt)
		assert.Equal(t, journal.OutcomeRetryable, att.Outcome)
	}

	step, found, err := j.GetStep(ctx, h.ExecutionID, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, journal.StepFailed, step.Status)
	assert.Equal(t, "exhausted", step.FailureKind)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	e, j := newTestEngine(t)

	var invocations atomic.Int64
	e.RegisterActivity("strict.rule", func(actx *ActivityContext, input value.Object) (value.Object, error) {
		invocations.Add(1)
		return nil, NonRetryable(errors.New("business rule violated"))
	})
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "strict",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "strict.rule", input, StepOptions{Retry: fastRetry(5)})
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "strict", value.Object{})
	require.NoError(t, err)

	_, err = h.Await(ctx)
	require.Error(t, err)
	assert.True(t, IsStepFailed(err))
	assert.Equal(t, int64(1), invocations.Load(), "no retry after NonRetryable")

	attempts, err := j.AttemptsForStep(ctx, h.ExecutionID, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, journal.OutcomeTerminal, attempts[0].Outcome)
}

func TestTimeoutOnceThenSucceed(t *testing.T) {
	e, j := newTestEngine(t)

	e.RegisterActivity("slow.once", func(actx *ActivityContext, input value.Object) (value.Object, error) {
		if actx.Attempt() == 1 {
			select {
			case <-time.After(time.Second):
				return nil, errors.New("should have timed out")
			case <-actx.Context().Done():
				return nil, actx.Context().Err()
			}
		}
		return value.Object{"ok": value.Bool(true)}, nil
	})
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "slow-then-ok",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "slow.once", input, StepOptions{
				StartToClose: 20 * time.Millisecond,
				Retry:        fastRetry(3),
			})
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "slow-then-ok", value.Object{})
	require.NoError(t, err)

	result, err := h.Await(ctx)
	require.NoError(t, err, "single successful return despite the timeout")
	assert.Equal(t, value.Bool(true), result["ok"])

	attempts, err := j.AttemptsForStep(ctx, h.ExecutionID, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, journal.OutcomeRetryable, attempts[0].Outcome)
	assert.Contains(t, attempts[0].Error, "deadline")
	assert.Equal(t, journal.OutcomeOK, attempts[1].Outcome)
}

func TestResumeCompletedReturnsRecordedResult(t *testing.T) {
	e, _ := newTestEngine(t)

	var bodyRuns atomic.Int64
	e.RegisterActivity("step.one", echoActivity("one"))
	e.RegisterActivity("step.two", echoActivity("two"))
	e.RegisterPipeline(twoStepPipeline(&bodyRuns))

	ctx := context.Background()
	h, err := e.Start(ctx, "two-step", value.Object{"doc": value.String("x")})
	require.NoError(t, err)
	first, err := h.Await(ctx)
	require.NoError(t, err)

	h2, err := e.Resume(ctx, h.ExecutionID)
	require.NoError(t, err)
	second, err := h2.Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), bodyRuns.Load(), "completed execution does not re-run the body")
}

func TestResumeReplaysRecordedStepsWithoutRerunning(t *testing.T) {
	e, j := newTestEngine(t)
	ctx := context.Background()

	var stepOneRuns, stepTwoRuns atomic.Int64
	e.RegisterActivity("step.one", func(actx *ActivityContext, input value.Object) (value.Object, error) {
		stepOneRuns.Add(1)
		return value.Object{"from": value.String("one")}, nil
	})
	e.RegisterActivity("step.two", func(actx *ActivityContext, input value.Object) (value.Object, error) {
		stepTwoRuns.Add(1)
		return value.Object{"from": value.String("two")}, nil
	})
	e.RegisterPipeline(twoStepPipeline(nil))

	// Hand-build the journal state of a process that crashed after step one:
	// execution running, step 0 completed, step 1 never issued.
	input := value.Object{"doc": value.String("x")}
	require.NoError(t, j.CreateExecution(ctx, journal.Execution{
		ID: "exec-crashed", Pipeline: "two-step", Input: input, StartedAtMS: 1,
	}))
	hash, err := value.InputHash(input)
	require.NoError(t, err)
	_, inserted, err := j.ClaimStep(ctx, journal.Step{
		ExecutionID: "exec-crashed", Seq: 0, Name: "step.one",
		Input: input, InputHash: hash, StartedAtMS: 2,
	})
	require.NoError(t, err)
	require.True(t, inserted)
	recorded := value.Object{"from": value.String("recorded-one")}
	require.NoError(t, j.CompleteStep(ctx, "exec-crashed", 0, recorded, "w-old", 1, 3))

	h, err := e.Resume(ctx, "exec-crashed")
	require.NoError(t, err)
	result, err := h.Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, value.String("two"), result["from"])
	assert.Equal(t, int64(0), stepOneRuns.Load(), "recorded step answered from history")
	assert.Equal(t, int64(1), stepTwoRuns.Load())

	// The replayed step fed its recorded output, not a fresh one, into step two.
	steps, err := j.StepsForExecution(ctx, "exec-crashed")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, recorded, steps[0].Output)
	assert.Equal(t, recorded, steps[1].Input)

	exec, err := j.GetExecution(ctx, "exec-crashed")
	require.NoError(t, err)
	assert.Equal(t, journal.ExecutionCompleted, exec.Status)
}

func TestReplayDivergenceIsNonDeterminism(t *testing.T) {
	e, j := newTestEngine(t)
	ctx := context.Background()

	e.RegisterActivity("step.one", echoActivity("one"))
	e.RegisterActivity("step.two", echoActivity("two"))
	e.RegisterPipeline(twoStepPipeline(nil))

	// History holds a different step name at seq 0 than the body issues.
	input := value.Object{"doc": value.String("x")}
	require.NoError(t, j.CreateExecution(ctx, journal.Execution{
		ID: "exec-diverged", Pipeline: "two-step", Input: input, StartedAtMS: 1,
	}))
	hash, err := value.InputHash(input)
	require.NoError(t, err)
	_, _, err = j.ClaimStep(ctx, journal.Step{
		ExecutionID: "exec-diverged", Seq: 0, Name: "some.other.step",
		Input: input, InputHash: hash, StartedAtMS: 2,
	})
	require.NoError(t, err)
	require.NoError(t, j.CompleteStep(ctx, "exec-diverged", 0, value.Object{}, "w", 1, 3))

	h, err := e.Resume(ctx, "exec-diverged")
	require.NoError(t, err)
	_, err = h.Await(ctx)
	require.Error(t, err)
	assert.True(t, IsNonDeterminism(err))

	exec, err := j.GetExecution(ctx, "exec-diverged")
	require.NoError(t, err)
	assert.Equal(t, journal.ExecutionFailed, exec.Status)
	assert.Equal(t, "non-determinism", exec.FailureKind)
}

func TestResumeUnknownExecution(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Resume(context.Background(), "missing")
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeExecutionNotFound, ee.Code)
}

func TestExecuteChildLinksAndPropagates(t *testing.T) {
	e, j := newTestEngine(t)

	e.RegisterActivity("step.one", echoActivity("one"))
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "child",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "step.one", input, StepOptions{})
		},
	})
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "parent",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteChild(ctx, "child", input)
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "parent", value.Object{"doc": value.String("x")})
	require.NoError(t, err)
	result, err := h.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, value.String("one"), result["marker"])

	steps, err := j.StepsForExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "pipeline:child", steps[0].Name)
	assert.Equal(t, journal.StepCompleted, steps[0].Status)
	require.NotEmpty(t, steps[0].ChildID)

	child, err := j.GetExecution(ctx, steps[0].ChildID)
	require.NoError(t, err)
	assert.Equal(t, journal.ExecutionCompleted, child.Status)
	assert.Equal(t, h.ExecutionID, child.ParentID)
	assert.Equal(t, int64(0), child.ParentSeq)
}

func TestCancelObservedAtHeartbeat(t *testing.T) {
	e, j := newTestEngine(t)

	started := make(chan struct{})
	var once atomic.Bool
	e.RegisterActivity("long.haul", func(actx *ActivityContext, input value.Object) (value.Object, error) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		for {
			if err := actx.Heartbeat("scanning"); err != nil {
				return nil, err
			}
			time.Sleep(time.Millisecond)
		}
	})
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "long",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "long.haul", input, StepOptions{Retry: fastRetry(1)})
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "long", value.Object{})
	require.NoError(t, err)

	<-started
	require.True(t, e.Cancel(h.ExecutionID))

	_, err = h.Await(ctx)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))

	exec, err := j.GetExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, journal.ExecutionFailed, exec.Status)
	assert.Equal(t, "canceled", exec.FailureKind)
}

func TestCancelUnknownExecution(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.False(t, e.Cancel("nope"))
}

func TestDeterministicIdentifiers(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	// One worker plus one execution: the pool takes id-1, Start takes id-2.
	e := New(j,
		WithWorkers(1),
		WithIDGenerator(testutil.NewSequentialIDGenerator("id")),
		WithTimeSource(testutil.NewSteppingTime(1000, 10)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(e.Close)

	e.RegisterActivity("step.one", echoActivity("one"))
	e.RegisterPipeline(PipelineFunc{
		PipelineName: "single",
		Body: func(ctx context.Context, exec Executor, input value.Object) (value.Object, error) {
			return exec.ExecuteStep(ctx, "step.one", input, StepOptions{})
		},
	})

	ctx := context.Background()
	h, err := e.Start(ctx, "single", value.Object{})
	require.NoError(t, err)
	assert.Equal(t, "id-2", h.ExecutionID)

	_, err = h.Await(ctx)
	require.NoError(t, err)

	steps, err := j.StepsForExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "id-1", steps[0].WorkerID)

	exec, err := j.GetExecution(ctx, h.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), exec.StartedAtMS)
	assert.Equal(t, int64(1010), steps[0].StartedAtMS)
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{
		InitialInterval:   100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaximumInterval:   350 * time.Millisecond,
		MaximumAttempts:   5,
	}
	assert.Equal(t, time.Duration(0), p.delay(1))
	assert.Equal(t, 100*time.Millisecond, p.delay(2))
	assert.Equal(t, 200*time.Millisecond, p.delay(3))
	assert.Equal(t, 350*time.Millisecond, p.delay(4), "capped at MaximumInterval")
	assert.Equal(t, 350*time.Millisecond, p.delay(5))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(errors.New("transient")))
	assert.False(t, IsRetryable(NonRetryable(errors.New("rule"))))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", NonRetryable(errors.New("rule")))))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded), "timeouts retry")
}

func TestClockSequence(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(-1), c.Current())
	assert.Equal(t, int64(0), c.Next())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(1), c.Current())
}
