package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks provide a mechanism for hooking into agent execution without
// modifying the engine:
//   - BeforeAgent: after the config is resolved and before any model call
//   - AfterAgent: after a successful invocation
//   - OnError: after a failed invocation
//   - AfterTask: after each map-reduce task completes
//
// BeforeAgent callbacks may abort the invocation by returning an error.
// Errors returned from the other types are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeAgent is triggered before an agent dispatches.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent is triggered after an agent returns a result.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackOnError is triggered when an invocation fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackAfterTask is triggered after a map-reduce task produced its
	// result string.
	CallbackAfterTask CallbackType = "after_task"
)

// CallbackContext provides information about the invocation to callbacks.
type CallbackContext struct {
	// Agent is the resolved agent name.
	Agent string

	// Method is the declared method, empty for virtual agents.
	Method string

	// Args are the named arguments of the invocation.
	Args map[string]any

	// Config is the effective configuration. Nil for task callbacks.
	Config *core.AgentConfig

	// Result is set for AfterAgent and AfterTask.
	Result any

	// Err is set for OnError.
	Err error

	// Callbacks can share data through Metadata.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast (callbacks run synchronously) and safe for
// concurrent use (map-reduce tasks complete in parallel).
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackBeforeAgent, func(ctx context.Context, c *CallbackContext) error {
//	    log.Printf("starting agent %s", c.Agent)
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a function based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks per type and runs them in registration
// order. The first error stops the remaining callbacks of that type.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logging.OrNoOp(logger),
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	args := []any{"callback", string(c.callbackType), "agent", callbackCtx.Agent}
	if callbackCtx.Method != "" {
		args = append(args, "method", callbackCtx.Method)
	}

	if callbackCtx.Err != nil {
		c.logger.Warn("engine.callback", append(args, "error", callbackCtx.Err.Error())...)
		return nil
	}

	c.logger.Info("engine.callback", args...)

	return nil
}
