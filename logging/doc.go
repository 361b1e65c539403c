// Package logging provides a minimal logging interface and adapters for AgentForge.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, the config service and the model handles use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with component / agent attributes and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - WithLogger / FromContext to carry a logger through context.Context
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sys := agentforge.New(func(o *agentforge.Options) { o.Logger = logger })
package logging
