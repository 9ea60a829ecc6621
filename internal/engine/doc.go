// Package engine executes durable pipelines.
//
// A pipeline body is deterministic orchestration code; every side effect it
// needs goes through the Executor as a named step. The engine records each
// step in the journal before running it on a worker, retries per policy with
// exponential backoff, and stamps attempts with worker identity and time.
//
// Crash recovery is replay: Resume re-runs the body from the start, and each
// re-issued step finds its recorded slot by sequence number. Completed steps
// answer from history without re-running the activity. A body that issues a
// different step name or input at a recorded slot fails the execution with a
// non-determinism error rather than guessing.
package engine
