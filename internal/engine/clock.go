package engine

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Clock is the monotonic logical clock stamping step sequence numbers.
//
// Every step an execution issues gets a strictly increasing seq from this
// clock. Replay walks the same body and reproduces the same seq values, which
// is what lets recorded results line up with re-issued steps. Wall-clock time
// never participates in ordering.
//
// Thread-safety: safe for concurrent use (atomic operations), though each
// execution run drives its own clock from a single goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 0.
func NewClock() *Clock {
	c := &Clock{}
	c.seq.Store(-1)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number, or -1 before any Next().
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource provides wall-clock stamps for activity records.
//
// Pipeline bodies never read it; only the engine does, when writing journal
// rows. Swapping in a deterministic source makes recorded timestamps stable
// for golden-trace tests.
type TimeSource interface {
	// NowMS returns the current time in Unix milliseconds.
	NowMS() int64
}

// SystemTime reads the real clock.
type SystemTime struct{}

// NowMS returns time.Now() in Unix milliseconds.
func (SystemTime) NowMS() int64 {
	return time.Now().UnixMilli()
}

// IDGenerator produces execution and worker identifiers.
// Implemented by UUIDv7Generator (production) and the deterministic
// generators in internal/testutil.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so execution IDs
// sort by creation time. Helpful when scanning a journal by hand.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
