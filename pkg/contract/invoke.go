package contract

import (
	"context"
	"fmt"
)

// Invoker calls one operation on a service instance. args holds one value
// per parameter in declaration order; Out and InOut values are written back
// into args before returning. The result may be a Future.
type Invoker func(ctx context.Context, instance any, args []any) (any, error)

// Future is the result of an operation that completes asynchronously.
type Future interface {
	Await(ctx context.Context) (any, error)
}

type future struct {
	done  chan struct{}
	value any
	err   error
}

// Go runs fn in its own goroutine and returns a Future for its result.
func Go(ctx context.Context, fn func(context.Context) (any, error)) Future {
	f := &future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

func (f *future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve awaits v when it is a Future and returns it unchanged otherwise.
func Resolve(ctx context.Context, v any) (any, error) {
	if f, ok := v.(Future); ok {
		return f.Await(ctx)
	}
	return v, nil
}

// Arg returns args[i] as T. A missing or nil argument yields the zero value.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) || args[i] == nil {
		return zero, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %d is %T, want %T", i, args[i], zero)
	}
	return v, nil
}

func receiver[S any](instance any) (S, error) {
	s, ok := instance.(S)
	if !ok {
		var zero S
		return zero, fmt.Errorf("service instance is %T, want %T", instance, zero)
	}
	return s, nil
}

// Nullary adapts a method without parameters, typically a method expression
// such as (*Service).Now.
func Nullary[S, R any](fn func(S, context.Context) (R, error)) Invoker {
	return func(ctx context.Context, instance any, _ []any) (any, error) {
		s, err := receiver[S](instance)
		if err != nil {
			return nil, err
		}
		return fn(s, ctx)
	}
}

// Unary adapts a method with one input parameter.
func Unary[S, A, R any](fn func(S, context.Context, A) (R, error)) Invoker {
	return func(ctx context.Context, instance any, args []any) (any, error) {
		s, err := receiver[S](instance)
		if err != nil {
			return nil, err
		}
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(s, ctx, a)
	}
}

// Binary adapts a method with two input parameters.
func Binary[S, A, B, R any](fn func(S, context.Context, A, B) (R, error)) Invoker {
	return func(ctx context.Context, instance any, args []any) (any, error) {
		s, err := receiver[S](instance)
		if err != nil {
			return nil, err
		}
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := Arg[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(s, ctx, a, b)
	}
}

// Procedure adapts a method with one input parameter and no result, the
// usual shape of a one-way operation.
func Procedure[S, A any](fn func(S, context.Context, A) error) Invoker {
	return func(ctx context.Context, instance any, args []any) (any, error) {
		s, err := receiver[S](instance)
		if err != nil {
			return nil, err
		}
		a, err := Arg[A](args, 0)
		if err != nil {
			return nil, err
		}
		return nil, fn(s, ctx, a)
	}
}
