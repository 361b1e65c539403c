package core

import (
	"maps"
	"slices"
)

// Capability is an abstract model capability label resolved to a concrete
// model identifier by the router.
type Capability = string

// Well-known capability labels.
const (
	CapabilityFast      Capability = "fast"
	CapabilitySmart     Capability = "smart"
	CapabilityReasoning Capability = "reasoning"
	CapabilityVision    Capability = "vision"
	CapabilityCoding    Capability = "coding"
)

// ExecutionStrategy selects how an agent invocation is driven.
type ExecutionStrategy string

const (
	// StrategyOneShot performs a single model call.
	StrategyOneShot ExecutionStrategy = "one_shot"
	// StrategyIterativeLoop runs a bounded tool-use reasoning loop.
	StrategyIterativeLoop ExecutionStrategy = "iterative_loop"
	// StrategyWorkflow dispatches to a named multi-stage workflow.
	StrategyWorkflow ExecutionStrategy = "workflow"
)

// Normalize maps accepted aliases onto the canonical strategy values.
func (s ExecutionStrategy) Normalize() ExecutionStrategy {
	switch s {
	case "", "oneshot", "ONE_SHOT":
		return StrategyOneShot
	case "react", "REACT", "ITERATIVE_LOOP":
		return StrategyIterativeLoop
	case "WORKFLOW":
		return StrategyWorkflow
	default:
		return s
	}
}

// Valid reports whether s (after normalization) is a known strategy.
func (s ExecutionStrategy) Valid() bool {
	switch s.Normalize() {
	case StrategyOneShot, StrategyIterativeLoop, StrategyWorkflow:
		return true
	default:
		return false
	}
}

// Default field values applied to freshly declared or synthesized configs.
const (
	DefaultUserPromptTemplate = "{input}"
	DefaultMaxIterations      = 5
	DefaultTemperature        = 0.7
)

// AgentConfig is the canonical declaration of one agent.
//
// The struct tags drive three decoders: yaml for declaration files, json for
// remote documents and mapstructure for field-wise overlays.
type AgentConfig struct {
	Name               string            `json:"name" yaml:"name" mapstructure:"name"`
	SystemPrompt       string            `json:"system_prompt" yaml:"system_prompt" mapstructure:"system_prompt"`
	UserPromptTemplate string            `json:"user_prompt_template" yaml:"user_prompt_template" mapstructure:"user_prompt_template"`
	Description        string            `json:"description" yaml:"description" mapstructure:"description"`
	Capability         Capability        `json:"capability" yaml:"capability" mapstructure:"capability"`
	Enabled            bool              `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ExecutionStrategy  ExecutionStrategy `json:"execution_strategy" yaml:"execution_strategy" mapstructure:"execution_strategy"`
	MaxIterations      int               `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`
	Tools              []string          `json:"tools" yaml:"tools" mapstructure:"tools"`
	SubAgents          []string          `json:"sub_agents" yaml:"sub_agents" mapstructure:"sub_agents"`
	Tags               []string          `json:"tags" yaml:"tags" mapstructure:"tags"`
	TracingEnabled     bool              `json:"tracing_enabled" yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	Temperature        float64           `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens    *int              `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty" mapstructure:"max_output_tokens"`
	ModelProfile       string            `json:"model_profile,omitempty" yaml:"model_profile,omitempty" mapstructure:"model_profile"`
	WorkflowParameters map[string]any    `json:"workflow_parameters,omitempty" yaml:"workflow_parameters,omitempty" mapstructure:"workflow_parameters"`
}

// DefaultAgentConfig returns a config populated with the framework defaults.
func DefaultAgentConfig(name string) AgentConfig {
	return AgentConfig{
		Name:               name,
		UserPromptTemplate: DefaultUserPromptTemplate,
		Capability:         CapabilitySmart,
		Enabled:            true,
		ExecutionStrategy:  StrategyOneShot,
		MaxIterations:      DefaultMaxIterations,
		Tools:              []string{},
		SubAgents:          []string{},
		Tags:               []string{},
		TracingEnabled:     true,
		Temperature:        DefaultTemperature,
		WorkflowParameters: map[string]any{},
	}
}

// Clone returns a deep copy so callers may mutate the result freely.
func (c AgentConfig) Clone() AgentConfig {
	out := c
	out.Tools = slices.Clone(c.Tools)
	out.SubAgents = slices.Clone(c.SubAgents)
	out.Tags = slices.Clone(c.Tags)

	if c.MaxOutputTokens != nil {
		v := *c.MaxOutputTokens
		out.MaxOutputTokens = &v
	}

	if c.WorkflowParameters != nil {
		out.WorkflowParameters = maps.Clone(c.WorkflowParameters)
	}

	return out
}

// Strategy returns the normalized execution strategy.
func (c AgentConfig) Strategy() ExecutionStrategy {
	return c.ExecutionStrategy.Normalize()
}

// WorkflowType returns workflow_parameters.type or "" when absent.
func (c AgentConfig) WorkflowType() string {
	t, _ := c.WorkflowParameters["type"].(string)
	return t
}
