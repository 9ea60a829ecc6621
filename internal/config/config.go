// Package config loads and validates runtime configuration.
//
// Configuration is CUE-checked: the embedded schema supplies defaults and
// constraints, and loading errors carry file positions from the CUE
// evaluator.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/pyx-industries/julee/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// Retry mirrors the #Retry schema. Durations are integer milliseconds.
type Retry struct {
	InitialIntervalMS int64   `json:"initial_interval_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
	MaximumIntervalMS int64   `json:"maximum_interval_ms"`
	MaximumAttempts   int     `json:"maximum_attempts"`
}

// Policy converts the config shape to the engine's retry policy.
func (r Retry) Policy() engine.RetryPolicy {
	return engine.RetryPolicy{
		InitialInterval:   time.Duration(r.InitialIntervalMS) * time.Millisecond,
		BackoffMultiplier: r.BackoffMultiplier,
		MaximumInterval:   time.Duration(r.MaximumIntervalMS) * time.Millisecond,
		MaximumAttempts:   r.MaximumAttempts,
	}
}

// Activity mirrors the #Activity schema: per-activity overrides.
type Activity struct {
	StartToCloseMS int64  `json:"start_to_close_ms"`
	Retry          *Retry `json:"retry"`
}

// Config is the validated runtime configuration.
type Config struct {
	JournalPath    string              `json:"journal_path"`
	Workers        int                 `json:"workers"`
	DefaultRetry   Retry               `json:"default_retry"`
	Activities     map[string]Activity `json:"activities"`
	OrphanHandling string              `json:"orphan_handling"`
	Curators       int                 `json:"curators"`
}

// Load reads, validates, and decodes the CUE config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates and decodes CUE config source. filename feeds error
// positions.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config: %s", cueerrors.Details(err, nil))
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// EngineOptions derives engine options from the configuration.
func (c Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithWorkers(c.Workers),
		engine.WithDefaultRetry(c.DefaultRetry.Policy()),
	}
}

// StepOptions returns the per-activity step options, falling back to zero
// options (engine defaults) for unconfigured activities.
func (c Config) StepOptions(activity string) engine.StepOptions {
	a, ok := c.Activities[activity]
	if !ok {
		return engine.StepOptions{}
	}
	opts := engine.StepOptions{
		StartToClose: time.Duration(a.StartToCloseMS) * time.Millisecond,
	}
	if a.Retry != nil {
		opts.Retry = a.Retry.Policy()
	}
	return opts
}
