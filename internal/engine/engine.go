package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/value"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

// Engine is the local durable-execution engine.
//
// It owns a journal, a registry of pipelines and activities, and a worker
// pool. Starting a pipeline records an execution, runs the body on the
// calling side, and dispatches every step to a worker with retry, timeout,
// and attempt recording. Resuming a crashed execution re-runs the body from
// the start; recorded steps answer from history without re-executing.
//
// Thread-safety model:
//   - Register* must complete before the first Start/Resume
//   - Start, Resume, Cancel, Status are safe from any goroutine
//   - Each execution's body runs on its own goroutine with its own logical
//     clock; the journal serializes durable writes
type Engine struct {
	journal    *journal.Journal
	pipelines  map[string]Pipeline
	activities map[string]Activity
	pool       *workerPool

	workers      int
	timeSource   TimeSource
	idGen        IDGenerator
	defaultRetry RetryPolicy
	logger       *slog.Logger
	interceptor  func(name string, act Activity) Activity

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithTimeSource injects the wall-clock source used for journal timestamps.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		e.timeSource = ts
	}
}

// WithIDGenerator injects the generator for execution and worker IDs.
func WithIDGenerator(gen IDGenerator) Option {
	return func(e *Engine) {
		e.idGen = gen
	}
}

// WithDefaultRetry sets the retry policy applied to steps whose StepOptions
// carry none.
func WithDefaultRetry(p RetryPolicy) Option {
	return func(e *Engine) {
		e.defaultRetry = p.normalize()
	}
}

// WithActivityInterceptor wraps every activity at registration time. Test
// harnesses use this to inject failures without touching the real
// implementations.
func WithActivityInterceptor(fn func(name string, act Activity) Activity) Option {
	return func(e *Engine) {
		e.interceptor = fn
	}
}

// WithLogger sets the structured logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine over the given journal.
func New(j *journal.Journal, opts ...Option) *Engine {
	e := &Engine{
		journal:      j,
		pipelines:    make(map[string]Pipeline),
		activities:   make(map[string]Activity),
		workers:      DefaultWorkers,
		timeSource:   SystemTime{},
		idGen:        UUIDv7Generator{},
		defaultRetry: DefaultRetryPolicy(),
		logger:       slog.Default(),
		running:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pool = newWorkerPool(e.workers, e.idGen)
	return e
}

// RegisterActivity binds a name to an activity implementation.
// Registering a duplicate name panics: registries are wired once at startup
// and a silent overwrite would corrupt replay semantics.
func (e *Engine) RegisterActivity(name string, act Activity) {
	if _, ok := e.activities[name]; ok {
		panic(fmt.Sprintf("activity %q already registered", name))
	}
	if e.interceptor != nil {
		act = e.interceptor(name, act)
	}
	e.activities[name] = act
}

// RegisterPipeline binds a pipeline by its Name().
func (e *Engine) RegisterPipeline(p Pipeline) {
	if _, ok := e.pipelines[p.Name()]; ok {
		panic(fmt.Sprintf("pipeline %q already registered", p.Name()))
	}
	e.pipelines[p.Name()] = p
}

// Close releases the worker pool. The journal is owned by the caller.
func (e *Engine) Close() {
	e.pool.close()
}

// Handle tracks an in-flight execution started by Start or Resume.
type Handle struct {
	// ExecutionID is the durable identifier; it survives crashes and is the
	// argument to Resume, Status, and provenance queries.
	ExecutionID string

	done   chan struct{}
	result value.Object
	err    error
}

// Await blocks until the execution finishes or ctx is done.
func (h *Handle) Await(ctx context.Context) (value.Object, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start begins a new execution of the named pipeline and returns immediately.
func (e *Engine) Start(ctx context.Context, pipeline string, input value.Object) (*Handle, error) {
	p, ok := e.pipelines[pipeline]
	if !ok {
		return nil, &Error{Code: CodeUnknownPipeline, Message: "pipeline not registered", StepName: pipeline, Seq: -1}
	}

	execID := e.idGen.Generate()
	err := e.journal.CreateExecution(ctx, journal.Execution{
		ID:          execID,
		Pipeline:    pipeline,
		Input:       input,
		StartedAtMS: e.timeSource.NowMS(),
	})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", pipeline, err)
	}

	return e.launch(ctx, execID, p, input), nil
}

// Resume re-runs an existing execution to completion.
//
// A completed execution returns its recorded result without re-running the
// body. A failed execution returns its recorded failure. A running execution
// (the crash-recovery case) replays: the body re-executes from the start and
// recorded steps answer from the journal.
func (e *Engine) Resume(ctx context.Context, executionID string) (*Handle, error) {
	exec, err := e.journal.GetExecution(ctx, executionID)
	if err != nil {
		return nil, &Error{Code: CodeExecutionNotFound, Message: err.Error(), ExecutionID: executionID, Seq: -1}
	}

	switch exec.Status {
	case journal.ExecutionCompleted:
		return finishedHandle(executionID, exec.Result, nil), nil
	case journal.ExecutionFailed:
		return finishedHandle(executionID, nil, &Error{
			Code:        CodeStepFailed,
			Message:     exec.Failure,
			ExecutionID: executionID,
			Seq:         -1,
		}), nil
	}

	p, ok := e.pipelines[exec.Pipeline]
	if !ok {
		return nil, &Error{Code: CodeUnknownPipeline, Message: "pipeline not registered", StepName: exec.Pipeline, ExecutionID: executionID, Seq: -1}
	}

	return e.launch(ctx, executionID, p, exec.Input), nil
}

// Cancel requests cancellation of a running execution. Takes effect at the
// execution's next heartbeat or step boundary; in-flight work is abandoned.
func (e *Engine) Cancel(executionID string) bool {
	e.mu.Lock()
	cancel, ok := e.running[executionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Status returns the journal's view of an execution.
func (e *Engine) Status(ctx context.Context, executionID string) (journal.Execution, error) {
	exec, err := e.journal.GetExecution(ctx, executionID)
	if err != nil {
		return journal.Execution{}, &Error{Code: CodeExecutionNotFound, Message: err.Error(), ExecutionID: executionID, Seq: -1}
	}
	return exec, nil
}

// launch runs the pipeline body on its own goroutine and returns a Handle.
func (e *Engine) launch(ctx context.Context, execID string, p Pipeline, input value.Object) *Handle {
	h := &Handle{ExecutionID: execID, done: make(chan struct{})}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running[execID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.running, execID)
			e.mu.Unlock()
			cancel()
			close(h.done)
		}()
		h.result, h.err = e.runExecution(runCtx, execID, p, input)
	}()

	return h
}

// runExecution drives one pass of a pipeline body and finalizes the record.
func (e *Engine) runExecution(ctx context.Context, execID string, p Pipeline, input value.Object) (value.Object, error) {
	logger := e.logger.With("execution", execID, "pipeline", p.Name())
	logger.Info("execution started")

	rc := &runContext{
		engine: e,
		execID: execID,
		clock:  NewClock(),
		logger: logger,
		ctx:    ctx,
	}

	result, err := p.Run(ctx, rc, input)
	endMS := e.timeSource.NowMS()

	if err != nil {
		kind := failureKind(err)
		logger.Error("execution failed", "kind", kind, "error", err)
		if ferr := e.journal.FailExecution(context.WithoutCancel(ctx), execID, err.Error(), kind, endMS); ferr != nil {
			logger.Error("failure record write failed", "error", ferr)
		}
		return nil, err
	}

	if result == nil {
		result = value.Object{}
	}
	if cerr := e.journal.CompleteExecution(ctx, execID, result, endMS); cerr != nil {
		logger.Error("completion record write failed", "error", cerr)
		return nil, fmt.Errorf("complete execution %s: %w", execID, cerr)
	}
	logger.Info("execution completed")
	return result, nil
}

func finishedHandle(execID string, result value.Object, err error) *Handle {
	h := &Handle{ExecutionID: execID, done: make(chan struct{}), result: result, err: err}
	close(h.done)
	return h
}

// failureKind maps an error to the journal's failure_kind column.
func failureKind(err error) string {
	switch {
	case IsNonDeterminism(err):
		return "non-determinism"
	case IsCanceled(err):
		return "canceled"
	case IsStepFailed(err):
		return "step-failed"
	default:
		return "error"
	}
}
