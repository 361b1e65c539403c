package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----- AgentConfig Tests -----

func TestDefaultAgentConfig(t *testing.T) {
	cfg := DefaultAgentConfig("writer")

	assert.Equal(t, "writer", cfg.Name)
	assert.Equal(t, "{input}", cfg.UserPromptTemplate)
	assert.Equal(t, CapabilitySmart, cfg.Capability)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, StrategyOneShot, cfg.Strategy())
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Nil(t, cfg.MaxOutputTokens)
}

func TestAgentConfig_CloneIsDeep(t *testing.T) {
	tokens := 100
	cfg := DefaultAgentConfig("a")
	cfg.Tools = []string{"search"}
	cfg.MaxOutputTokens = &tokens
	cfg.WorkflowParameters = map[string]any{"type": "map_reduce"}

	cp := cfg.Clone()
	cp.Tools[0] = "other"
	*cp.MaxOutputTokens = 5
	cp.WorkflowParameters["type"] = "x"

	assert.Equal(t, "search", cfg.Tools[0])
	assert.Equal(t, 100, *cfg.MaxOutputTokens)
	assert.Equal(t, "map_reduce", cfg.WorkflowType())
}

func TestExecutionStrategy_Normalize(t *testing.T) {
	tests := []struct {
		in   ExecutionStrategy
		want ExecutionStrategy
	}{
		{"", StrategyOneShot},
		{"ONE_SHOT", StrategyOneShot},
		{"react", StrategyIterativeLoop},
		{"iterative_loop", StrategyIterativeLoop},
		{"WORKFLOW", StrategyWorkflow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize(), string(tt.in))
		assert.True(t, tt.in.Valid())
	}

	assert.False(t, ExecutionStrategy("graph").Valid())
}

// ----- Overlay Tests -----

func TestApplyOverlay_FieldWiseOverwrite(t *testing.T) {
	cfg := DefaultAgentConfig("a")
	cfg.Tools = []string{"one", "two", "three"}
	cfg.SystemPrompt = "keep me"

	err := ApplyOverlay(&cfg, map[string]any{
		"tools":             []string{"x"},
		"temperature":       "1.5",
		"enabled":           false,
		"max_output_tokens": 256,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, cfg.Tools)
	assert.InDelta(t, 1.5, cfg.Temperature, 1e-9)
	assert.False(t, cfg.Enabled)
	require.NotNil(t, cfg.MaxOutputTokens)
	assert.Equal(t, 256, *cfg.MaxOutputTokens)
	assert.Equal(t, "keep me", cfg.SystemPrompt)
}

func TestApplyOverlay_ReplacesWorkflowParameters(t *testing.T) {
	cfg := DefaultAgentConfig("a")
	cfg.WorkflowParameters = map[string]any{"type": "map_reduce", "splitter": "s"}

	require.NoError(t, ApplyOverlay(&cfg, map[string]any{
		"workflow_parameters": map[string]any{"type": "other"},
	}))

	assert.Equal(t, map[string]any{"type": "other"}, cfg.WorkflowParameters)
}

func TestCheckOverlay_RejectsUnknownKeys(t *testing.T) {
	assert.NoError(t, CheckOverlay(map[string]any{"capability": "fast"}))
	assert.Error(t, CheckOverlay(map[string]any{"no_such_field": 1}))
}

// ----- Error Taxonomy Tests -----

func TestErrors_Taxonomy(t *testing.T) {
	var err error = &AgentDisabledError{Agent: "bot"}
	assert.True(t, IsAgentDisabled(err))
	assert.Equal(t, "agent bot is disabled via configuration", err.Error())

	err = &ConfigurationNotFoundError{Agent: "ghost"}
	assert.True(t, IsConfigurationNotFound(err))
	assert.Equal(t, "no configuration found for agent ghost", err.Error())

	perr := NewMissingCredentialError("openai", "")
	assert.True(t, errors.Is(perr, ErrProviderConfiguration))
	assert.Contains(t, perr.Error(), "(profile default)")

	uerr := NewUnknownProviderError("acme")
	assert.True(t, errors.Is(uerr, ErrUnknownProvider))
	assert.False(t, errors.Is(uerr, ErrProviderConfiguration))

	var pe *ProviderError
	assert.True(t, errors.As(error(uerr), &pe))
	assert.Equal(t, "acme", pe.Provider)
}

// ----- Interface Tests -----

func TestInterface_DefaultMethod(t *testing.T) {
	iface := &Interface{Methods: []Method{{Name: "summarize"}, {Name: "invoke"}}}
	m, ok := iface.DefaultMethod()
	require.True(t, ok)
	assert.Equal(t, "invoke", m.Name)

	iface = &Interface{Methods: []Method{{Name: "summarize"}, {Name: "translate"}}}
	m, ok = iface.DefaultMethod()
	require.True(t, ok)
	assert.Equal(t, "summarize", m.Name)

	_, ok = (&Interface{}).DefaultMethod()
	assert.False(t, ok)
}

func TestContent_Helpers(t *testing.T) {
	c := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "hi "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "search"}},
		TextPart{Text: "there"},
	}}

	assert.Equal(t, "hi there", c.Text())
	require.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "search", c.FunctionCalls()[0].Name)

	contents := ContentsFromMessages([]Message{{Role: RoleUser, Content: "x"}})
	assert.Equal(t, "x", contents[0].Text())
}
