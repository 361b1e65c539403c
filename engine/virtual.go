package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentforge/core"
)

// DisabledNotice is returned by VirtualAgent.Run and RunWithArgs when the
// agent is disabled.
const DisabledNotice = "Agent is disabled."

// VirtualAgent runs an agent that exists only as configuration. The config
// is resolved again on every call.
type VirtualAgent struct {
	engine *Engine
	name   string
}

// Name implements Agent.
func (a *VirtualAgent) Name() string { return a.name }

// Config returns the current effective config.
func (a *VirtualAgent) Config(ctx context.Context) (core.AgentConfig, error) {
	return a.engine.configs.Effective(ctx, a.name)
}

// Run implements Agent with input bound to "input".
func (a *VirtualAgent) Run(ctx context.Context, input string) (string, error) {
	return a.RunWithArgs(ctx, map[string]any{"input": input})
}

// RunWithArgs implements Agent. A disabled agent yields DisabledNotice and
// no error. A workflow agent called under WithAsyncScope fails with
// core.ErrSyncInAsyncLoop.
func (a *VirtualAgent) RunWithArgs(ctx context.Context, args map[string]any) (string, error) {
	return a.run(ctx, args, false)
}

// RunAsync runs the agent in its own goroutine. Workflow agents run inside
// the async scope.
func (a *VirtualAgent) RunAsync(ctx context.Context, input string) <-chan Result[string] {
	return goAsync(WithAsyncScope(ctx), func(ctx context.Context) (string, error) {
		return a.run(ctx, map[string]any{"input": input}, true)
	})
}

// RunStructured implements Agent. Unlike Run, a disabled agent fails with
// *core.AgentDisabledError.
func (a *VirtualAgent) RunStructured(ctx context.Context, input string, out any) error {
	cfg, err := a.Config(ctx)
	if err != nil {
		return err
	}

	if !cfg.Enabled {
		return &core.AgentDisabledError{Agent: a.name}
	}

	_, err = a.engine.execute(ctx, invocation{
		agent: a.name,
		args:  map[string]any{"input": input},
		order: []string{"input"},
		out:   out,
	}, cfg)

	return err
}

func (a *VirtualAgent) run(ctx context.Context, args map[string]any, async bool) (string, error) {
	cfg, err := a.Config(ctx)
	if err != nil {
		return "", err
	}

	if !cfg.Enabled {
		return DisabledNotice, nil
	}

	res, err := a.engine.execute(ctx, invocation{
		agent: a.name,
		args:  args,
		order: []string{"input"},
		async: async,
	}, cfg)
	if err != nil {
		return "", err
	}

	return fmt.Sprint(res), nil
}
