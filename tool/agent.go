package tool

import (
	"context"
	"fmt"
)

// AgentFunc invokes a child agent with named arguments.
type AgentFunc func(ctx context.Context, args map[string]any) (any, error)

// AgentTool exposes one method of a child agent as a tool. Its name is the
// child agent's name.
type AgentTool struct {
	agent       string
	method      string
	description string
	parameters  map[string]any
	fn          AgentFunc
}

// NewAgentTool builds an agent tool. params lists the method's argument
// names, each exposed as a string property. An empty description becomes
// "Agent <name>".
func NewAgentTool(agent, method, description string, params []string, fn AgentFunc) *AgentTool {
	if description == "" {
		description = fmt.Sprintf("Agent %s", agent)
	}

	props := make(map[string]any, len(params))
	for _, p := range params {
		props[p] = map[string]any{"type": "string"}
	}

	required := append([]string(nil), params...)

	return &AgentTool{
		agent:       agent,
		method:      method,
		description: description,
		parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
		fn: fn,
	}
}

// Name implements Tool.
func (t *AgentTool) Name() string { return t.agent }

// Method returns the bound agent method.
func (t *AgentTool) Method() string { return t.method }

// Description implements Tool.
func (t *AgentTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *AgentTool) Parameters() map[string]any { return t.parameters }

// Call implements Tool.
func (t *AgentTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return invoke(ctx, t.agent, t.parameters, args, t.fn)
}

// Kind implements Ref.
func (*AgentTool) Kind() Kind { return KindAgent }

// SourceName implements Source.
func (t *AgentTool) SourceName() string { return t.agent }

func (*AgentTool) isSource() {}
