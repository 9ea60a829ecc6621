// Package handler provides the cross-context handoff protocol: a bounded
// context that recognizes a domain condition hands it to "whatever happens
// next" without knowing who implements it.
//
// Two implementation shapes exist. A fine-grained handler acts directly on a
// side-effecting primitive (a log sink, a notifier) and answers synchronously.
// A Dispatcher holds an ordered list of routes to downstream use cases, wired
// at deployment time through lazy factories.
package handler

import (
	"context"

	"github.com/pyx-industries/julee/internal/ack"
)

// Handler accepts a domain subject and returns an acknowledgement.
// The subject type is owned by the bounded context that declares the handler
// dependency; implementations live wherever the capability lives.
type Handler[T any] interface {
	Handle(ctx context.Context, subject T) ack.Acknowledgement
}

// Func adapts a plain function to the Handler interface.
type Func[T any] func(ctx context.Context, subject T) ack.Acknowledgement

// Handle implements Handler.
func (f Func[T]) Handle(ctx context.Context, subject T) ack.Acknowledgement {
	return f(ctx, subject)
}
