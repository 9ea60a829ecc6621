package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/value"
)

// workerPool runs activity attempts on a fixed set of workers. Each worker
// carries a stable ID that ends up in the journal's attempt records, so
// provenance can name the actor for every attempt.
type workerPool struct {
	tasks chan *attemptTask
	wg    sync.WaitGroup
}

type attemptResult struct {
	output   value.Object
	workerID string
	err      error
}

type attemptTask struct {
	run    func(workerID string)
	result chan attemptResult
}

func newWorkerPool(n int, gen IDGenerator) *workerPool {
	p := &workerPool{tasks: make(chan *attemptTask)}
	for i := 0; i < n; i++ {
		id := gen.Generate()
		p.wg.Add(1)
		go p.work(id)
	}
	return p
}

func (p *workerPool) work(id string) {
	defer p.wg.Done()
	for task := range p.tasks {
		task.run(id)
	}
}

func (p *workerPool) close() {
	close(p.tasks)
	p.wg.Wait()
}

// execute runs one attempt on a pool worker, bounded by the step's
// StartToClose timeout. On timeout or cancellation the attempt is abandoned:
// the worker may still be running the activity, but its result is discarded.
func (p *workerPool) execute(ctx context.Context, act Activity, input value.Object, attempt int, timeout time.Duration) (value.Object, string, error) {
	var attemptCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	task := &attemptTask{result: make(chan attemptResult, 1)}
	task.run = func(workerID string) {
		actx := &ActivityContext{ctx: attemptCtx, workerID: workerID, attempt: attempt}
		output, err := act(actx, input)
		task.result <- attemptResult{output: output, workerID: workerID, err: err}
	}

	select {
	case p.tasks <- task:
	case <-attemptCtx.Done():
		return nil, "", attemptCtx.Err()
	}

	select {
	case res := <-task.result:
		return res.output, res.workerID, res.err
	case <-attemptCtx.Done():
		return nil, "", attemptCtx.Err()
	}
}

// runStep drives the attempt loop for one claimed step: dispatch to a worker,
// record the attempt, retry per policy, finalize the step record.
// startAttempt is 1 for fresh steps and higher when resuming a step that
// already has recorded attempts.
func (e *Engine) runStep(ctx context.Context, execID string, seq int64, name string, input value.Object, opts StepOptions, startAttempt int) (value.Object, error) {
	act, ok := e.activities[name]
	if !ok {
		serr := &Error{Code: CodeUnknownActivity, Message: "activity not registered", ExecutionID: execID, StepName: name, Seq: seq}
		e.failStep(ctx, execID, seq, serr.Error(), "terminal", "", 0)
		return nil, serr
	}

	policy := e.defaultRetry
	if opts.Retry != (RetryPolicy{}) {
		policy = opts.Retry.normalize()
	}

	logger := e.logger.With("execution", execID, "step", name, "seq", seq)

	var lastErr error
	for attempt := startAttempt; attempt <= policy.MaximumAttempts; attempt++ {
		if d := policy.delay(attempt); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				cerr := &Error{Code: CodeCanceled, Message: "canceled during backoff", ExecutionID: execID, StepName: name, Seq: seq, Cause: ctx.Err()}
				e.failStep(ctx, execID, seq, cerr.Error(), "canceled", "", attempt-1)
				return nil, cerr
			}
		}

		startMS := e.timeSource.NowMS()
		output, workerID, err := e.pool.execute(ctx, act, input, attempt, opts.StartToClose)
		endMS := e.timeSource.NowMS()

		outcome := journal.OutcomeOK
		errText := ""
		if err != nil {
			errText = err.Error()
			if IsRetryable(err) {
				outcome = journal.OutcomeRetryable
			} else {
				outcome = journal.OutcomeTerminal
			}
		}
		if rerr := e.journal.RecordAttempt(context.WithoutCancel(ctx), journal.Attempt{
			ExecutionID: execID,
			Seq:         seq,
			Attempt:     attempt,
			Outcome:     outcome,
			Error:       errText,
			WorkerID:    workerID,
			StartedAtMS: startMS,
			EndedAtMS:   endMS,
		}); rerr != nil {
			return nil, fmt.Errorf("step %s: record attempt: %w", name, rerr)
		}

		if err == nil {
			if output == nil {
				output = value.Object{}
			}
			if cerr := e.journal.CompleteStep(ctx, execID, seq, output, workerID, attempt, endMS); cerr != nil {
				return nil, fmt.Errorf("step %s: %w", name, cerr)
			}
			return output, nil
		}

		if !IsRetryable(err) {
			if errors.Is(err, context.Canceled) {
				cerr := &Error{Code: CodeCanceled, Message: errText, ExecutionID: execID, StepName: name, Seq: seq, Cause: err}
				e.failStep(ctx, execID, seq, errText, "canceled", workerID, attempt)
				return nil, cerr
			}
			serr := &Error{Code: CodeStepFailed, Message: errText, ExecutionID: execID, StepName: name, Seq: seq, Cause: err}
			e.failStep(ctx, execID, seq, errText, "terminal", workerID, attempt)
			return nil, serr
		}

		logger.Warn("attempt failed, will retry", "attempt", attempt, "max_attempts", policy.MaximumAttempts, "error", err)
		lastErr = err
	}

	msg := fmt.Sprintf("retries exhausted after %d attempts: %v", policy.MaximumAttempts, lastErr)
	serr := &Error{Code: CodeStepFailed, Message: msg, ExecutionID: execID, StepName: name, Seq: seq, Cause: lastErr}
	e.failStep(ctx, execID, seq, msg, "exhausted", "", policy.MaximumAttempts)
	return nil, serr
}

func (e *Engine) failStep(ctx context.Context, execID string, seq int64, failure, kind, workerID string, attempts int) {
	if err := e.journal.FailStep(context.WithoutCancel(ctx), execID, seq, failure, kind, workerID, attempts, e.timeSource.NowMS()); err != nil {
		e.logger.Error("step failure record write failed", "execution", execID, "seq", seq, "error", err)
	}
}
