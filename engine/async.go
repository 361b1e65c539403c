package engine

import "context"

type asyncScopeKey struct{}

// WithAsyncScope marks ctx as running inside an asynchronous caller.
// Synchronous workflow entry points refuse to run under the mark.
func WithAsyncScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, asyncScopeKey{}, true)
}

// InAsyncScope reports whether ctx carries the async mark.
func InAsyncScope(ctx context.Context) bool {
	in, _ := ctx.Value(asyncScopeKey{}).(bool)
	return in
}

// Work handed off to its own goroutine leaves the scope.
func leaveAsyncScope(ctx context.Context) context.Context {
	if !InAsyncScope(ctx) {
		return ctx
	}

	return context.WithValue(ctx, asyncScopeKey{}, false)
}

// Result is the outcome of an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Await waits for the result on ch or for ctx to be done.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func goAsync[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)

		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()

	return ch
}
