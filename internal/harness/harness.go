// Package harness runs YAML conformance scenarios against the real engine:
// a fresh in-memory journal, deterministic time and IDs, injected activity
// failures, and golden lineage snapshots.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/journal"
	"github.com/pyx-industries/julee/internal/knowledge"
	"github.com/pyx-industries/julee/internal/provenance"
	"github.com/pyx-industries/julee/internal/testutil"
	"github.com/pyx-industries/julee/internal/value"
)

// Result is the observed outcome of one scenario run.
type Result struct {
	Scenario    *Scenario
	ExecutionID string
	Status      string
	Response    value.Object
	Failure     string
	Lineage     *provenance.Lineage
}

// Run executes a scenario against a fresh engine and in-memory journal.
// Deterministic time and ID sources make repeated runs identical.
func Run(s *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %s: open journal: %w", s.Name, err)
	}
	defer j.Close()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	inj := newInjector(s.Failures)

	e := engine.New(j,
		engine.WithWorkers(1),
		engine.WithIDGenerator(testutil.NewSequentialIDGenerator("t")),
		engine.WithTimeSource(testutil.NewSteppingTime(1000, 10)),
		engine.WithDefaultRetry(engine.RetryPolicy{
			InitialInterval:   time.Millisecond,
			BackoffMultiplier: 1.0,
			MaximumInterval:   time.Millisecond,
			MaximumAttempts:   3,
		}),
		engine.WithActivityInterceptor(inj.wrap),
		engine.WithLogger(quiet),
	)
	defer e.Close()

	repo := knowledge.NewMemoryAssetRepository()
	knowledge.RegisterActivities(e, repo, knowledge.KeywordExtractionService{},
		knowledge.LoggingCuratorNotifier{Logger: quiet})

	var wiring knowledge.OrphanWiring
	switch s.OrphanHandling {
	case "", "none":
	case "log":
		wiring = knowledge.LoggingOrphanWiring(quiet)
	case "notify":
		wiring = knowledge.NotifyOrphanWiring(quiet)
	default:
		return nil, fmt.Errorf("scenario %s: unknown orphan_handling %q", s.Name, s.OrphanHandling)
	}
	knowledge.RegisterPipelines(e, wiring)

	input, err := s.inputObject()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	h, err := e.Start(ctx, s.Pipeline, input)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	response, runErr := h.Await(ctx)

	exec, err := j.GetExecution(ctx, h.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	lineage, err := provenance.NewReader(j).Lineage(ctx, h.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := &Result{
		Scenario:    s,
		ExecutionID: h.ExecutionID,
		Status:      exec.Status,
		Response:    response,
		Lineage:     lineage,
	}
	if runErr != nil {
		result.Failure = runErr.Error()
	}
	return result, nil
}

// Verify checks a result against the scenario's expectations.
func Verify(result *Result) error {
	s := result.Scenario

	if result.Status != s.Expect.Status {
		return fmt.Errorf("scenario %s: status %s, want %s (failure: %s)",
			s.Name, result.Status, s.Expect.Status, result.Failure)
	}

	if s.Expect.ErrorContains != "" && !strings.Contains(result.Failure, s.Expect.ErrorContains) {
		return fmt.Errorf("scenario %s: failure %q does not contain %q",
			s.Name, result.Failure, s.Expect.ErrorContains)
	}

	if len(s.Expect.Result) > 0 {
		want, err := value.ToValue(normalizeYAML(s.Expect.Result))
		if err != nil {
			return fmt.Errorf("scenario %s: expect.result: %w", s.Name, err)
		}
		for k, wantVal := range want.(value.Object) {
			gotVal, ok := result.Response[k]
			if !ok {
				return fmt.Errorf("scenario %s: response missing %q", s.Name, k)
			}
			wantJSON, err := value.MarshalValue(wantVal)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			gotJSON, err := value.MarshalValue(gotVal)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			if string(wantJSON) != string(gotJSON) {
				return fmt.Errorf("scenario %s: response[%q] = %s, want %s",
					s.Name, k, gotJSON, wantJSON)
			}
		}
	}

	return nil
}

// injector fails activity attempts per the scenario's failure plan.
type injector struct {
	mu     sync.Mutex
	plan   map[string]Failure
	failed map[string]int
}

func newInjector(failures []Failure) *injector {
	plan := make(map[string]Failure, len(failures))
	for _, f := range failures {
		plan[f.Activity] = f
	}
	return &injector{plan: plan, failed: make(map[string]int)}
}

func (in *injector) wrap(name string, act engine.Activity) engine.Activity {
	f, ok := in.plan[name]
	if !ok {
		return act
	}
	return func(actx *engine.ActivityContext, input value.Object) (value.Object, error) {
		in.mu.Lock()
		inject := f.Terminal || in.failed[name] < f.Attempts
		if inject {
			in.failed[name]++
		}
		in.mu.Unlock()

		if inject {
			err := errors.New(f.Error)
			if f.Terminal {
				return nil, engine.NonRetryable(err)
			}
			return nil, err
		}
		return act(actx, input)
	}
}
