// Package testutil provides deterministic stand-ins for the engine's
// clock and identifier sources, so tests and golden traces are stable
// across runs.
package testutil

import (
	"fmt"
	"sync"
)

// SteppingTime is a deterministic engine.TimeSource: every NowMS call
// advances by a fixed step, so recorded timestamps form a predictable
// sequence.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SteppingTime struct {
	mu     sync.Mutex
	now    int64
	stepMS int64
}

// NewSteppingTime creates a time source starting at startMS that advances by
// stepMS on every NowMS call.
func NewSteppingTime(startMS, stepMS int64) *SteppingTime {
	return &SteppingTime{now: startMS - stepMS, stepMS: stepMS}
}

// NowMS advances the clock one step and returns it.
func (t *SteppingTime) NowMS() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now += t.stepMS
	return t.now
}

// FixedTime is an engine.TimeSource frozen at a single instant.
type FixedTime int64

// NowMS returns the fixed instant.
func (t FixedTime) NowMS() int64 {
	return int64(t)
}

// SequentialIDGenerator yields "prefix-1", "prefix-2", ... in order.
//
// Deterministic test runs depend on stable IDs: the same scenario always
// produces the same execution and worker identifiers.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator with the given prefix.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID in sequence.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedIDGenerator returns predetermined IDs in order.
//
// Panics when exhausted, which fails fast on a test that creates more
// executions than it declared.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
