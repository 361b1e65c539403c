package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/llm"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/tracing"
)

// invocation carries everything one agent run needs besides its config.
type invocation struct {
	agent  string
	method string
	args   map[string]any
	// order lists argument names in declaration order.
	order []string
	// out is a structured target; nil requests text.
	out any
	// model overrides the capability routing.
	model string
	// async marks the asynchronous entry points, which may run workflows
	// inside the async scope.
	async bool
}

// execute runs inv inside an agent run. A synchronous call of an enabled
// workflow agent under WithAsyncScope fails before any work. Recording
// follows cfg.TracingEnabled of each agent, so a traced child of an untraced
// parent still records its runs.
func (e *Engine) execute(ctx context.Context, inv invocation, cfg core.AgentConfig) (any, error) {
	if cfg.Strategy() != core.StrategyWorkflow {
		ctx = leaveAsyncScope(ctx)
	} else if cfg.Enabled && !inv.async && InAsyncScope(ctx) {
		return nil, fmt.Errorf("agent %s: %w", inv.agent, core.ErrSyncInAsyncLoop)
	}

	switch {
	case !cfg.TracingEnabled:
		ctx = tracing.Suppress(ctx)
	case tracing.Suppressed(ctx):
		ctx = tracing.Unsuppress(ctx)
	}

	inputs := maps.Clone(inv.args)
	if inputs == nil {
		inputs = map[string]any{}
	}

	extra := map[string]any{"runtime_model": inv.model}

	start := e.now()

	res, err := tracing.Trace(ctx, e.collector, inv.agent, tracing.KindAgent, inputs, extra, func(ctx context.Context) (any, error) {
		return e.dispatch(ctx, inv, cfg)
	})

	e.metrics.ObserveAgent(inv.agent, e.now().Sub(start), err)

	cbCtx := &CallbackContext{
		Agent:    inv.agent,
		Method:   inv.method,
		Args:     inv.args,
		Config:   &cfg,
		Result:   res,
		Err:      err,
		Metadata: map[string]any{},
	}

	if err != nil {
		e.logger.Warn("engine.agent.failed", "agent", inv.agent, "error", err.Error())

		if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cbCtx); cbErr != nil {
			e.logger.Warn("engine.callback.failed", "callback", string(CallbackOnError), "error", cbErr.Error())
		}

		return nil, err
	}

	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterAgent, cbCtx); cbErr != nil {
		e.logger.Warn("engine.callback.failed", "callback", string(CallbackAfterAgent), "error", cbErr.Error())
	}

	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, inv invocation, cfg core.AgentConfig) (any, error) {
	if !cfg.Enabled {
		return nil, &core.AgentDisabledError{Agent: inv.agent}
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeAgent, &CallbackContext{
		Agent:    inv.agent,
		Method:   inv.method,
		Args:     inv.args,
		Config:   &cfg,
		Metadata: map[string]any{},
	}); err != nil {
		return nil, err
	}

	strategy := cfg.Strategy()

	if strategy == core.StrategyWorkflow {
		text, err := e.runWorkflow(ctx, cfg, inv.args)
		if err != nil {
			return nil, err
		}

		if inv.out == nil {
			return text, nil
		}

		if err := llm.ParseStructured(text, inv.out); err != nil {
			return nil, err
		}

		return inv.out, nil
	}

	if e.factory == nil {
		return nil, fmt.Errorf("%w: no model factory configured", core.ErrProviderConfiguration)
	}

	modelID := e.router.Resolve(cfg.Capability, inv.model)

	handle, err := e.factory.Create(ctx, llm.Spec{
		ModelID:     modelID,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
		Profile:     cfg.ModelProfile,
	})
	if err != nil {
		return nil, err
	}

	tools := e.resolveDependencies(ctx, cfg)
	messages := BuildMessages(cfg, inv.args, inv.order...)

	e.logger.Debug("engine.agent.dispatch",
		"agent", inv.agent,
		"model", modelID,
		"strategy", string(strategy),
		"tools", len(tools),
	)

	switch strategy {
	case core.StrategyOneShot:
		if inv.out != nil {
			if err := handle.InvokeStructured(ctx, messages, tools, inv.out); err != nil {
				return nil, err
			}

			return inv.out, nil
		}

		text, err := handle.Invoke(ctx, messages, tools)
		if err != nil {
			return nil, err
		}

		return text, nil
	case core.StrategyIterativeLoop:
		text, err := handle.InvokeLoop(ctx, messages, tools, cfg.MaxIterations, inv.out)
		if err != nil {
			return nil, err
		}

		if inv.out != nil {
			return inv.out, nil
		}

		return text, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown execution strategy %q", inv.agent, cfg.ExecutionStrategy)
	}
}

// resolveDependencies collects named tools, sub-agents exposed as tools and
// tag matched tools, in that order. A tool already collected is skipped.
// Nothing here fails the invocation; unresolvable entries are logged and
// omitted.
func (e *Engine) resolveDependencies(ctx context.Context, cfg core.AgentConfig) []tool.Ref {
	var refs []tool.Ref

	add := func(r tool.Ref) {
		if !slices.Contains(refs, r) {
			refs = append(refs, r)
		}
	}

	for _, name := range cfg.Tools {
		src, ok := e.lookupTool(name)
		if !ok {
			e.logger.Debug("engine.tool.not_found", "agent", cfg.Name, "tool", name)
			continue
		}

		ref, err := tool.Resolve(src)
		if err != nil {
			e.logger.Warn("engine.tool.resolve_failed", "agent", cfg.Name, "tool", name, "error", err.Error())
			continue
		}

		add(ref)
	}

	for _, name := range cfg.SubAgents {
		if ref, ok := e.agentTool(ctx, name); ok {
			add(ref)
		}
	}

	for _, src := range e.tools.GetByTags(cfg.Tags) {
		ref, err := tool.Resolve(src)
		if err != nil {
			e.logger.Warn("engine.tool.resolve_failed", "agent", cfg.Name, "tool", src.SourceName(), "error", err.Error())
			continue
		}

		add(ref)
	}

	return refs
}

func (e *Engine) lookupTool(name string) (tool.Source, bool) {
	if e.lookup != nil {
		if src, ok := e.lookup(name); ok && src != nil {
			return src, true
		}
	}

	return e.tools.Get(name)
}

// agentTool exposes a sub-agent as a tool named after it. Disabled or
// unresolvable children are skipped.
func (e *Engine) agentTool(ctx context.Context, name string) (tool.Ref, bool) {
	child, ok := e.Agent(ctx, name)
	if !ok {
		e.logger.Warn("engine.subagent.not_found", "agent", name)
		return nil, false
	}

	cfg, err := e.configs.Effective(ctx, child.Name())
	if err != nil {
		e.logger.Warn("engine.subagent.resolve_failed", "agent", name, "error", err.Error())
		return nil, false
	}

	if !cfg.Enabled {
		e.logger.Debug("engine.subagent.disabled", "agent", name)
		return nil, false
	}

	switch a := child.(type) {
	case *DeclaredAgent:
		m, ok := a.iface.DefaultMethod()
		if !ok {
			e.logger.Warn("engine.subagent.no_methods", "agent", name)
			return nil, false
		}

		desc := m.Description
		if desc == "" {
			desc = cfg.Description
		}

		return tool.NewAgentTool(name, m.Name, desc, m.Params, func(ctx context.Context, args map[string]any) (any, error) {
			return a.Invoke(ctx, m.Name, args)
		}), true
	case *VirtualAgent:
		return tool.NewAgentTool(name, core.InvokeMethod, cfg.Description, []string{"input"}, func(ctx context.Context, args map[string]any) (any, error) {
			return a.RunWithArgs(ctx, args)
		}), true
	default:
		e.logger.Warn("engine.subagent.unsupported", "agent", name, "type", fmt.Sprintf("%T", child))
		return nil, false
	}
}
