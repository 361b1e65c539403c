package core

import "slices"

// InvokeMethod is the method name preferred when a declared agent is exposed
// as a tool to its parent.
const InvokeMethod = "invoke"

// Method describes one callable method of a declared agent interface.
type Method struct {
	// Name of the method (e.g. "invoke", "summarize").
	Name string
	// Params lists argument names in declaration order. They become the
	// template placeholders available to the prompts.
	Params []string
	// Output is a prototype of the structured return type. Nil means the
	// method returns plain text.
	Output any
	// Description overrides the agent description when the method is
	// exposed as a tool.
	Description string
}

// Structured reports whether the method declares a structured return type.
func (m Method) Structured() bool { return m.Output != nil }

// Interface is the explicit replacement for a decorated protocol class: it
// names the agent it belongs to and enumerates its methods in declared order.
type Interface struct {
	Name    string
	Methods []Method
}

// Method looks up a method by name.
func (i *Interface) Method(name string) (Method, bool) {
	if i == nil {
		return Method{}, false
	}

	idx := slices.IndexFunc(i.Methods, func(m Method) bool { return m.Name == name })
	if idx < 0 {
		return Method{}, false
	}

	return i.Methods[idx], true
}

// DefaultMethod returns the method used when the agent is called without an
// explicit method: "invoke" when declared, otherwise the first method.
func (i *Interface) DefaultMethod() (Method, bool) {
	if m, ok := i.Method(InvokeMethod); ok {
		return m, true
	}

	if i == nil || len(i.Methods) == 0 {
		return Method{}, false
	}

	return i.Methods[0], true
}

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single role/content pair handed to a model handle.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
