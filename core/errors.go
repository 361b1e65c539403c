package core

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the framework error taxonomy. Typed errors below wrap
// them so both errors.Is and errors.As work at call sites.
var (
	ErrAgentDisabled          = errors.New("agent disabled")
	ErrConfigurationNotFound  = errors.New("configuration not found")
	ErrProviderConfiguration  = errors.New("provider configuration error")
	ErrUnknownProvider        = errors.New("unknown provider")
	ErrUnknownWorkflowType    = errors.New("unknown workflow type")
	ErrWorkflowConfiguration  = errors.New("workflow configuration error")
	ErrSyncInAsyncLoop        = errors.New("cannot call sync run from inside an async scope, use RunAsync instead")
	ErrIterationLimit         = errors.New("iteration limit reached")
	ErrUnknownMethod          = errors.New("unknown method")
	ErrNotReady               = errors.New("system not ready")
	ErrInvalidOverride        = errors.New("invalid runtime override")
	ErrStructuredOutputFailed = errors.New("structured output could not be parsed")
)

// AgentDisabledError is returned when an agent with enabled=false is invoked
// through a typed surface.
type AgentDisabledError struct {
	Agent string
}

func (e *AgentDisabledError) Error() string {
	return fmt.Sprintf("agent %s is disabled via configuration", e.Agent)
}

// Unwrap returns ErrAgentDisabled.
func (e *AgentDisabledError) Unwrap() error { return ErrAgentDisabled }

// ConfigurationNotFoundError is returned when no remote, local or runtime
// override source can produce a config for Agent.
type ConfigurationNotFoundError struct {
	Agent string
}

func (e *ConfigurationNotFoundError) Error() string {
	return fmt.Sprintf("no configuration found for agent %s", e.Agent)
}

// Unwrap returns ErrConfigurationNotFound.
func (e *ConfigurationNotFoundError) Unwrap() error { return ErrConfigurationNotFound }

// ProviderError describes a model provider problem. Kind is either
// ErrProviderConfiguration or ErrUnknownProvider.
type ProviderError struct {
	Kind     error
	Provider string
	Profile  string
	Message  string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Unwrap returns the error kind.
func (e *ProviderError) Unwrap() error { return e.Kind }

// NewMissingCredentialError builds the provider configuration error raised
// when no API key is available for provider (optionally under profile).
func NewMissingCredentialError(provider, profile string) *ProviderError {
	if profile == "" {
		profile = "default"
	}

	return &ProviderError{
		Kind:     ErrProviderConfiguration,
		Provider: provider,
		Profile:  profile,
		Message: fmt.Sprintf(
			"api key not found for provider %s (profile %s): set it via environment or credentials profile",
			provider, profile,
		),
	}
}

// NewUnknownProviderError builds the error raised for an unrecognized provider.
func NewUnknownProviderError(provider string) *ProviderError {
	return &ProviderError{
		Kind:     ErrUnknownProvider,
		Provider: provider,
		Message:  fmt.Sprintf("unknown llm provider: %s", provider),
	}
}

// IsAgentDisabled reports whether err signals a disabled agent.
func IsAgentDisabled(err error) bool { return errors.Is(err, ErrAgentDisabled) }

// IsConfigurationNotFound reports whether err signals missing configuration.
func IsConfigurationNotFound(err error) bool { return errors.Is(err, ErrConfigurationNotFound) }
