// Package engine resolves agent names to runnable agents and executes them.
//
// # Resolution
//
// Engine.Agent passes a requested name through the experiment registry and
// then returns either a DeclaredAgent, when an Interface is registered under
// the resolved name, or a VirtualAgent, when only an effective configuration
// exists. Unknown names report ok=false instead of failing.
//
// # Execution
//
// Every invocation fetches the effective configuration, routes the
// capability to a concrete model, obtains a model handle from the factory,
// resolves tools and sub-agents, renders the prompt templates and dispatches
// on the execution strategy:
//
//	one_shot        single model call (structured when the method declares an output)
//	iterative_loop  bounded tool-use loop
//	workflow        named workflow, currently only "map_reduce"
//
// Invocations are recorded as "agent" runs in the trace collector. Model and
// tool calls nested inside open their own runs below it through the context.
//
// # Disabled agents
//
// A declared agent with enabled=false fails with *core.AgentDisabledError.
// A virtual agent invoked through Run or RunWithArgs returns the literal
// DisabledNotice instead; RunStructured fails like a declared agent.
//
// # Asynchronous calls
//
// InvokeAsync and RunAsync run in their own goroutine under an async scope
// carried by the context. Calling any synchronous entry point (Invoke, Call,
// Run, RunWithArgs, RunStructured) of a workflow agent inside that scope fails
// with core.ErrSyncInAsyncLoop before any work is done.
package engine
