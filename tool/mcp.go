package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agentforge/logging"
)

const mcpCallTimeout = 30 * time.Second

// MCPServer configures one stdio MCP server whose tools are imported.
type MCPServer struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args"`
	Env     map[string]string `yaml:"env" json:"env"`
	Tags    []string          `yaml:"tags" json:"tags"`
}

// MCPClient is the subset of the mcp-go client used by the toolset.
type MCPClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPToolset holds a connected MCP server and the tools it exposes.
type MCPToolset struct {
	server MCPServer
	client MCPClient
	tools  []*MCPTool
}

// ConnectMCP starts the server process, performs the MCP handshake and
// discovers its tools.
func ConnectMCP(ctx context.Context, server MCPServer) (*MCPToolset, error) {
	c, err := mcpclient.NewStdioMCPClient(server.Command, envSlice(server.Env), server.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: create stdio client: %w", server.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "agentforge",
		Version: "1.0.0",
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp server %q: initialize: %w", server.Name, err)
	}

	return NewMCPToolset(ctx, server, c)
}

// NewMCPToolset discovers the tools of an already initialized client.
func NewMCPToolset(ctx context.Context, server MCPServer, client MCPClient) (*MCPToolset, error) {
	result, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcp server %q: list tools: %w", server.Name, err)
	}

	ts := &MCPToolset{server: server, client: client}
	for _, t := range result.Tools {
		ts.tools = append(ts.tools, &MCPTool{server: server.Name, client: client, tool: t})
	}

	logging.FromContext(ctx).Info("mcp.tools.discovered", "server", server.Name, "count", len(ts.tools))

	return ts, nil
}

// Server returns the server configuration.
func (s *MCPToolset) Server() MCPServer { return s.server }

// Tools returns the discovered tools.
func (s *MCPToolset) Tools() []*MCPTool { return s.tools }

// Close terminates the server connection.
func (s *MCPToolset) Close() error { return s.client.Close() }

// MCPTool is an external tool backed by an MCP server.
type MCPTool struct {
	server string
	client MCPClient
	tool   mcp.Tool
}

// Name implements Tool. Tools are named mcp_<server>_<tool>.
func (t *MCPTool) Name() string {
	return fmt.Sprintf("mcp_%s_%s", sanitizeName(t.server), sanitizeName(t.tool.Name))
}

// Description implements Tool.
func (t *MCPTool) Description() string {
	if t.tool.Description != "" {
		return t.tool.Description
	}

	return fmt.Sprintf("MCP tool %q from server %q", t.tool.Name, t.server)
}

// Parameters implements Tool.
func (t *MCPTool) Parameters() map[string]any {
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	data, err := json.Marshal(t.tool.InputSchema)
	if err != nil {
		return params
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return params
	}

	if decoded["properties"] == nil {
		decoded["properties"] = map[string]any{}
	}

	decoded["type"] = "object"

	return decoded
}

// Call implements Tool.
func (t *MCPTool) Call(ctx context.Context, args map[string]any) (any, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.tool.Name
	req.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	result, err := t.client.CallTool(callCtx, req)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Message: err.Error(), Code: CodeExecution}
	}

	content := extractMCPContent(result)
	if result.IsError {
		return nil, &ToolError{Tool: t.Name(), Message: content, Code: CodeExecution, Details: errors.New(content)}
	}

	return content, nil
}

// Kind implements Ref.
func (*MCPTool) Kind() Kind { return KindExternal }

// SourceName implements Source.
func (t *MCPTool) SourceName() string { return t.Name() }

func (*MCPTool) isSource() {}

func extractMCPContent(result *mcp.CallToolResult) string {
	parts := make([]string, 0, len(result.Content))

	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}

	return strings.Join(parts, "\n")
}

func sanitizeName(s string) string {
	var b strings.Builder

	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	return b.String()
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}

	return out
}
