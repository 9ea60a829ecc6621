// Package usecase defines the contract every business operation implements.
//
// A use case is a pure, deterministic operation over its injected
// repository/service protocols: execute a Request, return a Response. It has
// no awareness of durability, retries, or timing - those concerns live in the
// proxies and the engine that schedules it.
package usecase

import "context"

// Interface is the contract for one business operation.
//
// Type parameters:
//   - Req: the operation's request (business parameters only - never a handle
//     to a proxy, step, or engine object)
//   - Resp: the operation's response (domain values and primitives only)
type Interface[Req, Resp any] interface {
	// Name returns a stable identifier for the operation, used for pipeline
	// registration and provenance.
	Name() string

	// Execute performs the operation. Blocking protocol calls take the
	// context; the use case itself reads no clock and no randomness.
	Execute(ctx context.Context, req Req) (Resp, error)
}

// Factory produces a fresh use-case instance on demand. Handler routes hold
// factories rather than instances so that two bounded contexts can depend on
// each other's capabilities without either having to be constructed first.
type Factory[Req, Resp any] func() Interface[Req, Resp]
