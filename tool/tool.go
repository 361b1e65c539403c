// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (APIs, computations, nested agents, MCP servers)
// with schema validated arguments and consistent error handling.
//
// Every tool handed to a model is a Ref, a closed variant with three kinds:
//
//   - KindPrimitive: plain Go functions (FunctionTool, TypedTool) and
//     instantiated tool classes (Wrapper)
//   - KindAgent: a child agent exposed through AgentTool
//   - KindExternal: tools implemented elsewhere (External, MCPTool)
//
// The registry stores Sources, which are either ready Refs or Classes that are
// instantiated on resolution. Resolve performs the exhaustive conversion.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentforge/internal/util"
)

// Tool defines the uniform name / description / argument-schema / invoke shape
// handed to model handles.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Be safe for concurrent use (workflow fan-out calls tools in parallel)
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with arguments decoded from the model's tool call.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Kind discriminates the Ref variants.
type Kind int

const (
	// KindPrimitive is a tool implemented in-process.
	KindPrimitive Kind = iota
	// KindAgent is a child agent exposed as a tool.
	KindAgent
	// KindExternal is a tool implemented outside the framework.
	KindExternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindAgent:
		return "agent"
	case KindExternal:
		return "external"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source is anything the registry can hold. It is implemented by every Ref and
// by *Class.
type Source interface {
	SourceName() string
	isSource()
}

// Ref is a resolved tool in uniform shape. The set of implementations is
// closed to this package.
type Ref interface {
	Tool
	Source
	Kind() Kind
}

// Resolve converts a registry Source into a Ref. Classes are instantiated.
func Resolve(src Source) (Ref, error) {
	switch s := src.(type) {
	case nil:
		return nil, fmt.Errorf("tool: nil source")
	case Ref:
		switch s.Kind() {
		case KindPrimitive, KindAgent, KindExternal:
			return s, nil
		default:
			return nil, fmt.Errorf("tool %s: unsupported kind %s", s.Name(), s.Kind())
		}
	case *Class:
		return s.Instantiate()
	default:
		return nil, fmt.Errorf("tool %s: unsupported source %T", src.SourceName(), src)
	}
}

// Definitions converts tools into provider agnostic (name, description,
// parameters) triples.
func Definitions(tools []Ref) []Definition {
	out := make([]Definition, 0, len(tools))
	for _, t := range tools {
		out = append(out, Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}

	return out
}

// Definition is the static metadata of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// External adapts any Tool implementation into an external Ref.
type External struct {
	Tool
}

// NewExternal wraps t as an external tool reference.
func NewExternal(t Tool) *External { return &External{Tool: t} }

// Kind implements Ref.
func (*External) Kind() Kind { return KindExternal }

// SourceName implements Source.
func (e *External) SourceName() string { return e.Name() }

func (*External) isSource() {}

// AsRef returns t unchanged when it already is a Ref, otherwise wraps it as
// an external tool.
func AsRef(t Tool) Ref {
	if r, ok := t.(Ref); ok {
		return r
	}

	return NewExternal(t)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
