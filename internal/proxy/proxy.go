// Package proxy turns protocol method calls into durable engine steps.
//
// A static proxy implements a protocol interface (a Repository or Service)
// by encoding each method call's arguments, submitting them as one named
// step, and decoding the recorded output. To the caller the method looks like
// a direct call; underneath it is retried, timed, and journaled.
package proxy

import (
	"context"
	"fmt"

	"github.com/pyx-industries/julee/internal/engine"
	"github.com/pyx-industries/julee/internal/value"
)

// Call submits one protocol method call as a durable step and decodes its
// recorded output into O. The args struct must marshal to the constrained
// value model (no floats); O is typically the method's response struct.
func Call[O any](ctx context.Context, exec engine.Executor, name string, args any, opts engine.StepOptions) (O, error) {
	var out O

	input, err := value.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("%s: encode args: %w", name, err)
	}

	output, err := exec.ExecuteStep(ctx, name, input, opts)
	if err != nil {
		return out, err
	}

	if err := value.Unmarshal(output, &out); err != nil {
		return out, fmt.Errorf("%s: decode output: %w", name, err)
	}
	return out, nil
}

// Do submits a method call whose output does not matter beyond success.
func Do(ctx context.Context, exec engine.Executor, name string, args any, opts engine.StepOptions) error {
	input, err := value.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: encode args: %w", name, err)
	}
	_, err = exec.ExecuteStep(ctx, name, input, opts)
	return err
}

// ActivityFunc adapts a typed implementation function into an engine
// activity: decode args, run, encode response. Real repository and service
// implementations register through this so proxies and implementations share
// one wire shape.
func ActivityFunc[A, O any](fn func(ctx context.Context, args A) (O, error)) engine.Activity {
	return func(actx *engine.ActivityContext, input value.Object) (value.Object, error) {
		var args A
		if err := value.Unmarshal(input, &args); err != nil {
			return nil, engine.NonRetryable(fmt.Errorf("decode args: %w", err))
		}
		out, err := fn(actx.Context(), args)
		if err != nil {
			return nil, err
		}
		output, err := value.Marshal(out)
		if err != nil {
			return nil, engine.NonRetryable(fmt.Errorf("encode output: %w", err))
		}
		return output, nil
	}
}
