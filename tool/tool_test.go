package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- FunctionTool Tests --------------------

func sumSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	sum := NewFunctionTool("sum", "Add numbers", sumSchema(), func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	res, err := sum.Call(context.Background(), map[string]any{"a": 1.5, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.5, res)
	assert.Equal(t, KindPrimitive, sum.Kind())
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sum := NewFunctionTool("sum", "Add numbers", sumSchema(), func(context.Context, map[string]any) (any, error) {
		t.Fatal("must not be called")
		return nil, nil
	})

	_, err := sum.Call(context.Background(), map[string]any{"a": 1.0})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failing := NewFunctionTool("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := failing.Call(context.Background(), map[string]any{"payload": []any{}})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ToolErrorPassthrough(t *testing.T) {
	custom := NewToolError("x", "custom", "RATE_LIMIT")
	tl := NewFunctionTool("x", "", map[string]any{"type": "object"}, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})

	_, err := tl.Call(context.Background(), nil)
	assert.Same(t, custom, err)
}

func TestFunctionTool_DefaultSchema(t *testing.T) {
	tl := NewFunctionTool("echo", "Echo", nil, func(_ context.Context, args map[string]any) (any, error) {
		return args["payload"], nil
	})

	props := tl.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "payload")
}

// -------------------- TypedTool Tests --------------------

type weatherArgs struct {
	City  string `json:"city" jsonschema:"description=City name"`
	Units string `json:"units,omitempty"`
}

func TestTypedTool(t *testing.T) {
	weather := NewTypedTool("weather", "Get weather", func(_ context.Context, args weatherArgs) (any, error) {
		return args.City + "/" + args.Units, nil
	})

	props := weather.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "city")

	res, err := weather.Call(context.Background(), map[string]any{"city": "Berlin", "units": "metric"})
	require.NoError(t, err)
	assert.Equal(t, "Berlin/metric", res)
}

// -------------------- Class & Resolve Tests --------------------

type counterHandler struct{ calls int }

func (h *counterHandler) Call(context.Context, map[string]any) (any, error) {
	h.calls++
	return h.calls, nil
}

func TestClass_Resolve(t *testing.T) {
	class := &Class{
		Name:        "counter",
		Description: "Counts calls",
		Args:        struct{}{},
		New:         func() (Handler, error) { return &counterHandler{}, nil },
	}

	ref, err := Resolve(class)
	require.NoError(t, err)
	assert.Equal(t, "counter", ref.Name())
	assert.Equal(t, KindPrimitive, ref.Kind())

	res, err := ref.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	// every resolution builds a fresh instance
	other, err := Resolve(class)
	require.NoError(t, err)
	res, _ = other.Call(context.Background(), map[string]any{})
	assert.Equal(t, 1, res)
}

func TestClass_MissingConstructor(t *testing.T) {
	_, err := Resolve(&Class{Name: "broken"})
	assert.Error(t, err)
}

func TestResolve_RefPassthroughAndNil(t *testing.T) {
	ft := NewFunctionTool("f", "", nil, nil)
	ref, err := Resolve(ft)
	require.NoError(t, err)
	assert.Same(t, ft, ref)

	_, err = Resolve(nil)
	assert.Error(t, err)
}

type plainTool struct{}

func (plainTool) Name() string { return "plain" }

func (plainTool) Description() string { return "plain" }

func (plainTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (plainTool) Call(context.Context, map[string]any) (any, error) { return "ok", nil }

func TestAsRef(t *testing.T) {
	ref := AsRef(plainTool{})
	assert.Equal(t, KindExternal, ref.Kind())
	assert.Equal(t, "plain", ref.SourceName())

	ft := NewFunctionTool("f", "", nil, nil)
	assert.Same(t, ft, AsRef(ft))
}

// -------------------- AgentTool Tests --------------------

func TestAgentTool(t *testing.T) {
	at := NewAgentTool("researcher", "invoke", "", []string{"topic"}, func(_ context.Context, args map[string]any) (any, error) {
		return "researched " + args["topic"].(string), nil
	})

	assert.Equal(t, "researcher", at.Name())
	assert.Equal(t, "Agent researcher", at.Description())
	assert.Equal(t, KindAgent, at.Kind())
	assert.Equal(t, "invoke", at.Method())

	res, err := at.Call(context.Background(), map[string]any{"topic": "go"})
	require.NoError(t, err)
	assert.Equal(t, "researched go", res)

	_, err = at.Call(context.Background(), map[string]any{})
	assert.Error(t, err)

	defs := Definitions([]Ref{at})
	require.Len(t, defs, 1)
	assert.Equal(t, "researcher", defs[0].Name)
}

// -------------------- MCP Tests --------------------

type fakeMCPClient struct {
	lastCall mcp.CallToolRequest
	isError  bool
	closed   bool
}

func (f *fakeMCPClient) ListTools(context.Context, mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	return &mcp.ListToolsResult{Tools: []mcp.Tool{
		{Name: "read-file", Description: "Reads a file"},
	}}, nil
}

func (f *fakeMCPClient) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.lastCall = req

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "contents"}},
		IsError: f.isError,
	}, nil
}

func (f *fakeMCPClient) Close() error {
	f.closed = true
	return nil
}

func TestMCPToolset(t *testing.T) {
	client := &fakeMCPClient{}
	ts, err := NewMCPToolset(context.Background(), MCPServer{Name: "fs"}, client)
	require.NoError(t, err)
	require.Len(t, ts.Tools(), 1)

	mt := ts.Tools()[0]
	assert.Equal(t, "mcp_fs_read_file", mt.Name())
	assert.Equal(t, KindExternal, mt.Kind())
	assert.Equal(t, "object", mt.Parameters()["type"])

	res, err := mt.Call(context.Background(), map[string]any{"path": "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "contents", res)
	assert.Equal(t, "read-file", client.lastCall.Params.Name)

	client.isError = true
	_, err = mt.Call(context.Background(), nil)
	assert.Error(t, err)

	require.NoError(t, ts.Close())
	assert.True(t, client.closed)
}
