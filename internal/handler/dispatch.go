package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyx-industries/julee/internal/ack"
	"github.com/pyx-industries/julee/internal/usecase"
)

// Route binds one downstream use case to a dispatcher.
//
// The factory is NOT invoked at construction or registration time. Nothing is
// instantiated until Handle runs, by which point every bounded context has
// registered its capabilities - this is what breaks the construction-order
// and circular-dependency problem between contexts.
type Route[T any] struct {
	name string
	run  func(ctx context.Context, subject T) error
}

// NewRoute builds a route from a lazy use-case factory and a request builder
// that maps the handler's subject to that use case's request.
func NewRoute[T, Req, Resp any](name string, factory usecase.Factory[Req, Resp], build func(T) Req) Route[T] {
	return Route[T]{
		name: name,
		run: func(ctx context.Context, subject T) error {
			uc := factory()
			if _, err := uc.Execute(ctx, build(subject)); err != nil {
				return fmt.Errorf("%s: %w", uc.Name(), err)
			}
			return nil
		},
	}
}

// Name returns the route's registration name.
func (r Route[T]) Name() string { return r.name }

// Dispatcher is the coarse-grained orchestration handler: on each invocation
// it instantiates and runs every routed use case in registration order.
//
// The route list is fixed at construction and only read afterward, so a
// Dispatcher is safe for concurrent Handle calls; each call creates fresh
// use-case instances.
type Dispatcher[T any] struct {
	routes []Route[T]
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher over the given routes.
// The slice is copied so later mutation by the caller cannot change
// dispatch order.
func NewDispatcher[T any](routes ...Route[T]) *Dispatcher[T] {
	copied := make([]Route[T], len(routes))
	copy(copied, routes)
	return &Dispatcher[T]{
		routes: copied,
		logger: slog.Default(),
	}
}

// WithLogger returns a dispatcher that logs route progress to the given
// logger instead of the default.
func (d *Dispatcher[T]) WithLogger(logger *slog.Logger) *Dispatcher[T] {
	return &Dispatcher[T]{routes: d.routes, logger: logger}
}

// Handle runs every route in order. The first failing route stops dispatch
// and yields unable with the failure recorded in the errors list; routes that
// already ran are not compensated. If all routes succeed the result is wilco.
//
// A dispatcher with zero routes answers roger: the handoff was received but
// nothing is wired to act on it.
func (d *Dispatcher[T]) Handle(ctx context.Context, subject T) ack.Acknowledgement {
	if len(d.routes) == 0 {
		return ack.Roger(ack.WithDebug("no routes registered"))
	}

	for _, route := range d.routes {
		if err := route.run(ctx, subject); err != nil {
			d.logger.Warn("dispatch route failed",
				"route", route.name,
				"error", err,
			)
			return ack.Unable(ack.WithErrors(fmt.Sprintf("route %s: %v", route.name, err)))
		}
		d.logger.Debug("dispatch route completed", "route", route.name)
	}

	return ack.Wilco(ack.WithDebug(fmt.Sprintf("%d routes completed", len(d.routes))))
}
