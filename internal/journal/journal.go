package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pyx-industries/julee/internal/value"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (executions, steps, step_attempts)
const currentSchemaVersion = 1

// Execution status values.
const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

// Step status values.
const (
	StepRunning   = "running"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// Attempt outcome values.
const (
	OutcomeOK        = "ok"
	OutcomeRetryable = "retryable"
	OutcomeTerminal  = "terminal"
)

// Execution is one pipeline execution record.
type Execution struct {
	ID          string
	Pipeline    string
	Input       value.Object
	Result      value.Object // nil unless completed
	Failure     string
	FailureKind string
	Status      string
	ParentID    string // empty for root executions
	ParentSeq   int64
	StartedAtMS int64
	EndedAtMS   int64
}

// Step is one activity record: a proxied protocol call or a nested dispatch.
type Step struct {
	ExecutionID string
	Seq         int64
	Name        string
	Input       value.Object
	InputHash   string
	Output      value.Object
	Failure     string
	FailureKind string
	Status      string
	Attempts    int
	WorkerID    string
	ChildID     string // set when the step dispatched a nested pipeline
	StartedAtMS int64
	EndedAtMS   int64
}

// Attempt is one try of a step's activity.
type Attempt struct {
	ExecutionID string
	Seq         int64
	Attempt     int
	Outcome     string
	Error       string
	WorkerID    string
	StartedAtMS int64
	EndedAtMS   int64
}

// Journal provides durable storage for execution history.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a SQLite journal at the given path.
// Applies required pragmas and migrations automatically; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent step recording.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Journal methods when available.
func (j *Journal) DB() *sql.DB {
	return j.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// No incremental migrations yet: schema.sql is the v1 baseline.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (j *Journal) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return j.db.QueryContext(ctx, query, args...)
}
