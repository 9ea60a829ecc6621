// Package journal provides durable storage for pipeline execution history.
//
// The journal is the engine's single source of truth: executions, their
// recorded steps (one per proxied activity call or child dispatch), and the
// per-step attempt log. Business code never writes here directly - only the
// engine appends, and appends are idempotent so crash/restart replay observes
// inserted=false and skips work that already happened.
//
// Storage is SQLite with WAL mode for concurrent read access (the provenance
// reader and the trace CLI read while an engine writes). All value payloads
// are canonical JSON TEXT so byte-identical history survives round trips.
package journal
