package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyx-industries/julee/internal/value"
)

func createTestJournal(t *testing.T) *Journal {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		j.Close()
	})
	return j
}

func testInput() value.Object {
	return value.Object{"url": value.String("https://example.com/doc")}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	j1, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, j2.Close())
}

func TestCreateAndGetExecution(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	err := j.CreateExecution(ctx, Execution{
		ID:          "exec-1",
		Pipeline:    "knowledge.capture",
		Input:       testInput(),
		StartedAtMS: 1000,
	})
	require.NoError(t, err)

	exec, err := j.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", exec.ID)
	assert.Equal(t, "knowledge.capture", exec.Pipeline)
	assert.Equal(t, testInput(), exec.Input)
	assert.Equal(t, ExecutionRunning, exec.Status)
	assert.Empty(t, exec.ParentID)
	assert.Equal(t, int64(1000), exec.StartedAtMS)
	assert.Zero(t, exec.EndedAtMS)
}

func TestGetExecutionNotFound(t *testing.T) {
	j := createTestJournal(t)

	_, err := j.GetExecution(context.Background(), "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestCreateExecutionIsIdempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	exec := Execution{
		ID:          "exec-1",
		Pipeline:    "knowledge.capture",
		Input:       testInput(),
		StartedAtMS: 1000,
	}
	require.NoError(t, j.CreateExecution(ctx, exec))

	// A resumed process re-issues the same insert.
	exec.StartedAtMS = 9999
	require.NoError(t, j.CreateExecution(ctx, exec))

	got, err := j.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.StartedAtMS, "original record wins")
}

func TestCompleteExecution(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))

	result := value.Object{"asset_id": value.String("abc123")}
	require.NoError(t, j.CompleteExecution(ctx, "exec-1", result, 2000))

	exec, err := j.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, exec.Status)
	assert.Equal(t, result, exec.Result)
	assert.Equal(t, int64(2000), exec.EndedAtMS)
}

func TestCompleteExecutionTwiceKeepsFirstResult(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))

	first := value.Object{"asset_id": value.String("abc123")}
	require.NoError(t, j.CompleteExecution(ctx, "exec-1", first, 2000))

	second := value.Object{"asset_id": value.String("other")}
	require.NoError(t, j.CompleteExecution(ctx, "exec-1", second, 3000))

	exec, err := j.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, first, exec.Result)
	assert.Equal(t, int64(2000), exec.EndedAtMS)
}

func TestFailExecution(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))
	require.NoError(t, j.FailExecution(ctx, "exec-1", "extraction service unreachable", "step-failed", 2000))

	exec, err := j.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, ExecutionFailed, exec.Status)
	assert.Equal(t, "extraction service unreachable", exec.Failure)
	assert.Equal(t, "step-failed", exec.FailureKind)
}

func TestIncompleteExecutions(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-a", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))
	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-b", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 2000,
	}))
	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-child", Pipeline: "knowledge.index", Input: testInput(),
		ParentID: "exec-a", ParentSeq: 3, StartedAtMS: 1500,
	}))
	require.NoError(t, j.CompleteExecution(ctx, "exec-b", value.Object{}, 3000))

	incomplete, err := j.IncompleteExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1, "children and completed executions excluded")
	assert.Equal(t, "exec-a", incomplete[0].ID)
}

func TestClaimStepFirstClaimInserts(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))

	step := Step{
		ExecutionID: "exec-1",
		Seq:         0,
		Name:        "knowledge.asset.save",
		Input:       testInput(),
		InputHash:   "hash-0",
		StartedAtMS: 1001,
	}
	got, inserted, err := j.ClaimStep(ctx, step)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, StepRunning, got.Status)
}

func TestClaimStepReplayReturnsExisting(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))

	step := Step{
		ExecutionID: "exec-1",
		Seq:         0,
		Name:        "knowledge.asset.save",
		Input:       testInput(),
		InputHash:   "hash-0",
		StartedAtMS: 1001,
	}
	_, inserted, err := j.ClaimStep(ctx, step)
	require.NoError(t, err)
	require.True(t, inserted)

	output := value.Object{"stored": value.Bool(true)}
	require.NoError(t, j.CompleteStep(ctx, "exec-1", 0, output, "worker-1", 1, 1002))

	// Replay re-claims the same slot and observes the recorded outcome.
	existing, inserted, err := j.ClaimStep(ctx, step)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, StepCompleted, existing.Status)
	assert.Equal(t, output, existing.Output)
	assert.Equal(t, "hash-0", existing.InputHash)
	assert.Equal(t, "worker-1", existing.WorkerID)
	assert.Equal(t, 1, existing.Attempts)
}

func TestFailStep(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))
	step := Step{
		ExecutionID: "exec-1", Seq: 0, Name: "knowledge.extraction.extract",
		Input: testInput(), InputHash: "hash-0", StartedAtMS: 1001,
	}
	_, _, err := j.ClaimStep(ctx, step)
	require.NoError(t, err)

	require.NoError(t, j.FailStep(ctx, "exec-1", 0, "boom", "terminal", "worker-1", 3, 1005))

	got, found, err := j.GetStep(ctx, "exec-1", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StepFailed, got.Status)
	assert.Equal(t, "boom", got.Failure)
	assert.Equal(t, "terminal", got.FailureKind)
	assert.Equal(t, 3, got.Attempts)
}

func TestGetStepNotFound(t *testing.T) {
	j := createTestJournal(t)

	_, found, err := j.GetStep(context.Background(), "exec-1", 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStepsForExecutionOrderedBySeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))

	// Insert out of order; reads must come back by seq.
	for _, seq := range []int64{2, 0, 1} {
		_, _, err := j.ClaimStep(ctx, Step{
			ExecutionID: "exec-1",
			Seq:         seq,
			Name:        "knowledge.asset.save",
			Input:       testInput(),
			InputHash:   "h",
			StartedAtMS: 1000 + seq,
		})
		require.NoError(t, err)
	}

	steps, err := j.StepsForExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, step := range steps {
		assert.Equal(t, int64(i), step.Seq)
	}
}

func TestLinkChildExecution(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-parent", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))
	_, _, err := j.ClaimStep(ctx, Step{
		ExecutionID: "exec-parent", Seq: 0, Name: "pipeline:knowledge.index",
		Input: testInput(), InputHash: "h", StartedAtMS: 1001,
	})
	require.NoError(t, err)

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-child", Pipeline: "knowledge.index", Input: testInput(),
		ParentID: "exec-parent", ParentSeq: 0, StartedAtMS: 1002,
	}))
	require.NoError(t, j.LinkChildExecution(ctx, "exec-parent", 0, "exec-child"))

	step, found, err := j.GetStep(ctx, "exec-parent", 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "exec-child", step.ChildID)

	child, err := j.GetExecution(ctx, "exec-child")
	require.NoError(t, err)
	assert.Equal(t, "exec-parent", child.ParentID)
	assert.Equal(t, int64(0), child.ParentSeq)
}

func TestRecordAttempts(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CreateExecution(ctx, Execution{
		ID: "exec-1", Pipeline: "knowledge.capture", Input: testInput(), StartedAtMS: 1000,
	}))
	_, _, err := j.ClaimStep(ctx, Step{
		ExecutionID: "exec-1", Seq: 0, Name: "knowledge.extraction.extract",
		Input: testInput(), InputHash: "h", StartedAtMS: 1001,
	})
	require.NoError(t, err)

	require.NoError(t, j.RecordAttempt(ctx, Attempt{
		ExecutionID: "exec-1", Seq: 0, Attempt: 1,
		Outcome: OutcomeRetryable, Error: "timeout",
		WorkerID: "worker-1", StartedAtMS: 1001, EndedAtMS: 1002,
	}))
	require.NoError(t, j.RecordAttempt(ctx, Attempt{
		ExecutionID: "exec-1", Seq: 0, Attempt: 2,
		Outcome: OutcomeOK,
		WorkerID: "worker-1", StartedAtMS: 1003, EndedAtMS: 1004,
	}))
	// Crash between attempt record and step finalization re-records on resume.
	require.NoError(t, j.RecordAttempt(ctx, Attempt{
		ExecutionID: "exec-1", Seq: 0, Attempt: 2,
		Outcome: OutcomeOK,
		WorkerID: "worker-2", StartedAtMS: 9999, EndedAtMS: 9999,
	}))

	attempts, err := j.AttemptsForStep(ctx, "exec-1", 0)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, OutcomeRetryable, attempts[0].Outcome)
	assert.Equal(t, "timeout", attempts[0].Error)
	assert.Equal(t, OutcomeOK, attempts[1].Outcome)
	assert.Empty(t, attempts[1].Error)
	assert.Equal(t, "worker-1", attempts[1].WorkerID, "duplicate record ignored")
}
