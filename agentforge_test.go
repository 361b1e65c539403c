package agentforge

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentforge/config"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/llm"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/model"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/tracing"
)

func newTestSystem(t *testing.T) (*System, *model.MockModel) {
	t.Helper()

	mock := model.NewMockModel("mock-model", "mock")

	s, err := New(context.Background(), func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Factory = llm.FactoryFunc(func(_ context.Context, spec llm.Spec) (llm.LLM, error) {
			return llm.NewHandle(mock, spec.ModelID), nil
		})
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	return s, mock
}

// ----- Lifecycle Tests -----

func TestSystem_Phases(t *testing.T) {
	s, _ := newTestSystem(t)

	assert.Equal(t, PhaseReady, s.Phase())
	assert.Equal(t, 10, s.Settings().MaxConcurrency)

	_, err := s.CreateAgent("helper", nil)
	require.NoError(t, err)

	_, ok := s.Agent(context.Background(), "helper")
	require.True(t, ok)
	assert.Equal(t, PhaseRunning, s.Phase())

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, PhaseStopped, s.Phase())

	_, ok = s.Agent(context.Background(), "helper")
	assert.False(t, ok)

	_, err = s.DeclareAgent(&core.Interface{Name: "late"}, core.DefaultAgentConfig("late"))
	require.ErrorIs(t, err, ErrStopped)

	_, err = s.CreateAgent("late", nil)
	require.ErrorIs(t, err, ErrStopped)

	require.NoError(t, s.Shutdown(context.Background()))
}

func TestSystem_ShutdownClearsTraces(t *testing.T) {
	s, mock := newTestSystem(t)
	mock.QueueText("ok")

	a, err := s.CreateAgent("helper", nil)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Collector().RunsOfKind(tracing.KindAgent))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Empty(t, s.Collector().Runs())
}

// ----- Agent Tests -----

func TestSystem_DeclareAgent(t *testing.T) {
	s, mock := newTestSystem(t)
	mock.QueueText("Bonjour")

	iface := &core.Interface{Name: "translator", Methods: []core.Method{{Name: "translate", Params: []string{"text", "lang"}}}}

	cfg := core.DefaultAgentConfig("")
	cfg.SystemPrompt = "Translate into {lang}."
	cfg.UserPromptTemplate = "{text}"
	cfg.Capability = core.CapabilityFast

	a, err := s.DeclareAgent(iface, cfg)
	require.NoError(t, err)

	out, err := a.Invoke(context.Background(), "translate", map[string]any{"text": "Hello", "lang": "French"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Hello", reqs[0].Contents[len(reqs[0].Contents)-1].Text())

	stored, ok := s.Agents().Config("translator")
	require.True(t, ok)
	assert.Equal(t, "translator", stored.Name)
}

func TestSystem_DeclareAgentRejectsInvalidConfig(t *testing.T) {
	s, _ := newTestSystem(t)

	cfg := core.DefaultAgentConfig("hot")
	cfg.Temperature = 3

	_, err := s.DeclareAgent(&core.Interface{Name: "hot", Methods: []core.Method{{Name: "invoke", Params: []string{"input"}}}}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, ok := s.Agents().Config("hot")
	assert.False(t, ok)

	_, err = s.DeclareAgent(nil, cfg)
	require.Error(t, err)
}

func TestSystem_CreateAgent(t *testing.T) {
	s, _ := newTestSystem(t)

	a, err := s.CreateAgent("echo", map[string]any{"user_prompt_template": "Echo: {input}"})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: Echo: ping", out)

	_, err = s.CreateAgent("off", map[string]any{"enabled": false})
	require.NoError(t, err)

	off, ok := s.Agent(context.Background(), "off")
	require.True(t, ok)

	out, err = off.Run(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, engine.DisabledNotice, out)

	_, err = s.CreateAgent("bad", map[string]any{"temperature": "hot"})
	require.ErrorIs(t, err, core.ErrInvalidOverride)
}

func TestSystem_UpdateCapability(t *testing.T) {
	s, _ := newTestSystem(t)

	s.UpdateCapability(core.CapabilityFast, "claude-3-5-haiku")
	assert.Equal(t, "claude-3-5-haiku", s.Router().Resolve(core.CapabilityFast, ""))
}

func TestSystem_Experiment(t *testing.T) {
	s, _ := newTestSystem(t)

	_, err := s.CreateAgent("writer_b", nil)
	require.NoError(t, err)

	require.NoError(t, s.RegisterExperiment("writer", map[string]float64{"writer_a": 0, "writer_b": 1}))

	a, ok := s.Agent(context.Background(), "writer")
	require.True(t, ok)
	assert.Equal(t, "writer_b", a.Name())

	require.Error(t, s.RegisterExperiment("broken", map[string]float64{"x": 0}))
}

// ----- Tool Tests -----

func TestSystem_ToolsAndScope(t *testing.T) {
	s, _ := newTestSystem(t)

	search := s.CreateTool("search", "Searches.", nil, func(context.Context, map[string]any) (any, error) {
		return "found", nil
	}, "web")

	src, ok := s.Tools().Get("search")
	require.True(t, ok)
	assert.Same(t, search, src)
	assert.Equal(t, []string{"search"}, s.Tools().NamesByTag("web"))

	provided := tool.NewFunctionTool("search", "Scoped search.", nil, func(context.Context, map[string]any) (any, error) {
		return "scoped", nil
	})
	s.Provide("search", provided)

	got, ok := s.lookup("search")
	require.True(t, ok)
	assert.Same(t, provided, got)

	_, ok = s.lookup("missing")
	assert.False(t, ok)
}

type fakeMCPClient struct {
	closed atomic.Int32
}

func (f *fakeMCPClient) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: []mcp.Tool{{Name: "read_file", Description: "Reads a file."}}}, nil
}

func (f *fakeMCPClient) CallTool(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("contents")}}, nil
}

func (f *fakeMCPClient) Close() error {
	f.closed.Add(1)
	return nil
}

func TestSystem_AddToolset(t *testing.T) {
	s, _ := newTestSystem(t)

	client := &fakeMCPClient{}

	ts, err := tool.NewMCPToolset(context.Background(), tool.MCPServer{Name: "files", Tags: []string{"fs"}}, client)
	require.NoError(t, err)

	require.NoError(t, s.AddToolset(ts))
	assert.Equal(t, []string{"mcp_files_read_file"}, s.Tools().NamesByTag("fs"))

	require.Error(t, s.AddToolset(ts))

	// Already connected servers are skipped without spawning a process.
	require.NoError(t, s.ConnectMCP(context.Background(), tool.MCPServer{Name: "files", Command: "does-not-exist"}))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, int32(1), client.closed.Load())
}

// ----- Declaration Tests -----

const declarationsYAML = `
capabilities:
  fast: claude-3-5-haiku
experiments:
  writer:
    writer_a: 1
agents:
  - name: writer_a
    system_prompt: You write short texts.
    capability: fast
  - name: reviewer
    system_prompt: You review.
    tools: [search]
tool_tags:
  search: [web]
`

func TestSystem_LoadDeclarations(t *testing.T) {
	s, _ := newTestSystem(t)

	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(declarationsYAML), 0o600))

	require.NoError(t, s.LoadDeclarations(context.Background(), path))

	assert.Equal(t, "claude-3-5-haiku", s.Router().Resolve(core.CapabilityFast, ""))

	cfg, ok := s.Agents().Config("reviewer")
	require.True(t, ok)
	assert.Equal(t, []string{"search"}, cfg.Tools)
	assert.Equal(t, core.CapabilitySmart, cfg.Capability)

	a, ok := s.Agent(context.Background(), "writer")
	require.True(t, ok)
	assert.Equal(t, "writer_a", a.Name())

	// Tags declared before the tool exists are applied on registration.
	assert.Empty(t, s.Tools().NamesByTag("web"))
	s.CreateTool("search", "Searches.", nil, func(context.Context, map[string]any) (any, error) { return nil, nil })
	assert.Equal(t, []string{"search"}, s.Tools().NamesByTag("web"))
}

func TestSystem_ApplyKeepsInterface(t *testing.T) {
	s, _ := newTestSystem(t)

	iface := &core.Interface{Name: "writer_a", Methods: []core.Method{{Name: "invoke", Params: []string{"input"}}}}
	_, err := s.DeclareAgent(iface, core.DefaultAgentConfig("writer_a"))
	require.NoError(t, err)

	d, err := config.Parse([]byte(declarationsYAML))
	require.NoError(t, err)
	require.NoError(t, s.Apply(context.Background(), d))

	got, ok := s.Agents().Interface("writer_a")
	require.True(t, ok)
	assert.Same(t, iface, got)

	cfg, _ := s.Agents().Config("writer_a")
	assert.Equal(t, "You write short texts.", cfg.SystemPrompt)
}

func TestSystem_ApplyRejectsInvalidAgents(t *testing.T) {
	s, _ := newTestSystem(t)

	d, err := config.Parse([]byte("agents:\n  - name: a\n    system_prompt: ok\n  - name: b\n    temperature: 5\n"))
	require.NoError(t, err)

	err = s.Apply(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent b")

	_, ok := s.Agents().Config("a")
	assert.False(t, ok)
}
