package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hupe1980/agentforge/core"
)

// DeclaredAgent runs an agent through the methods of its Interface.
type DeclaredAgent struct {
	engine *Engine
	name   string
	iface  *core.Interface
}

// Name implements Agent.
func (a *DeclaredAgent) Name() string { return a.name }

// Interface returns the declared methods.
func (a *DeclaredAgent) Interface() *core.Interface { return a.iface }

type invokeOptions struct {
	model string
	async bool
}

// InvokeOption configures a single invocation.
type InvokeOption func(o *invokeOptions)

// WithModel routes the invocation to model instead of the configured
// capability.
func WithModel(model string) InvokeOption {
	return func(o *invokeOptions) { o.model = model }
}

func asyncEntry() InvokeOption {
	return func(o *invokeOptions) { o.async = true }
}

// Invoke calls method with named arguments. Methods with a structured
// output return a pointer to a new value of the output type; others return
// the text answer.
func (a *DeclaredAgent) Invoke(ctx context.Context, method string, args map[string]any, opts ...InvokeOption) (any, error) {
	m, err := a.method(method)
	if err != nil {
		return nil, err
	}

	var out any
	if m.Structured() {
		out = newOutput(m.Output)
	}

	return a.invoke(ctx, m, args, out, opts)
}

// InvokeAsync runs Invoke in its own goroutine. Workflow agents run inside
// the async scope.
func (a *DeclaredAgent) InvokeAsync(ctx context.Context, method string, args map[string]any, opts ...InvokeOption) <-chan Result[any] {
	return goAsync(WithAsyncScope(ctx), func(ctx context.Context) (any, error) {
		return a.Invoke(ctx, method, args, append(opts[:len(opts):len(opts)], asyncEntry())...)
	})
}

// Run implements Agent. input is bound to the first parameter of the
// default method.
func (a *DeclaredAgent) Run(ctx context.Context, input string) (string, error) {
	m, err := a.defaultMethod()
	if err != nil {
		return "", err
	}

	res, err := a.invoke(ctx, m, inputArgs(m, input), nil, nil)
	if err != nil {
		return "", err
	}

	return fmt.Sprint(res), nil
}

// RunWithArgs implements Agent using the default method in text mode.
func (a *DeclaredAgent) RunWithArgs(ctx context.Context, args map[string]any) (string, error) {
	m, err := a.defaultMethod()
	if err != nil {
		return "", err
	}

	res, err := a.invoke(ctx, m, args, nil, nil)
	if err != nil {
		return "", err
	}

	return fmt.Sprint(res), nil
}

// RunStructured implements Agent using the default method.
func (a *DeclaredAgent) RunStructured(ctx context.Context, input string, out any) error {
	m, err := a.defaultMethod()
	if err != nil {
		return err
	}

	_, err = a.invoke(ctx, m, inputArgs(m, input), out, nil)

	return err
}

// Call invokes method on a and returns its result as T. A string T on a
// method without structured output yields the text answer; any other T is
// filled from a structured answer.
func Call[T any](ctx context.Context, a *DeclaredAgent, method string, args map[string]any, opts ...InvokeOption) (T, error) {
	var zero T

	m, err := a.method(method)
	if err != nil {
		return zero, err
	}

	if _, text := any(zero).(string); text && !m.Structured() {
		res, err := a.invoke(ctx, m, args, nil, opts)
		if err != nil {
			return zero, err
		}

		return any(fmt.Sprint(res)).(T), nil
	}

	var out T
	if _, err := a.invoke(ctx, m, args, &out, opts); err != nil {
		return zero, err
	}

	return out, nil
}

func (a *DeclaredAgent) invoke(ctx context.Context, m core.Method, args map[string]any, out any, opts []InvokeOption) (any, error) {
	var o invokeOptions
	for _, fn := range opts {
		fn(&o)
	}

	for _, p := range m.Params {
		if _, ok := args[p]; !ok {
			return nil, fmt.Errorf("agent %s: method %s: missing argument %q", a.name, m.Name, p)
		}
	}

	cfg, err := a.engine.configs.Effective(ctx, a.name)
	if err != nil {
		return nil, err
	}

	return a.engine.execute(ctx, invocation{
		agent:  a.name,
		method: m.Name,
		args:   args,
		order:  m.Params,
		out:    out,
		model:  o.model,
		async:  o.async,
	}, cfg)
}

func (a *DeclaredAgent) method(name string) (core.Method, error) {
	m, ok := a.iface.Method(name)
	if !ok {
		return core.Method{}, fmt.Errorf("%w: agent %s has no method %s", core.ErrUnknownMethod, a.name, name)
	}

	return m, nil
}

func (a *DeclaredAgent) defaultMethod() (core.Method, error) {
	m, ok := a.iface.DefaultMethod()
	if !ok {
		return core.Method{}, fmt.Errorf("%w: agent %s declares no methods", core.ErrUnknownMethod, a.name)
	}

	return m, nil
}

func inputArgs(m core.Method, input string) map[string]any {
	if len(m.Params) == 0 {
		return map[string]any{"input": input}
	}

	return map[string]any{m.Params[0]: input}
}

// newOutput allocates a value of the output prototype's type and returns a
// pointer to it.
func newOutput(proto any) any {
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return reflect.New(t).Interface()
}
