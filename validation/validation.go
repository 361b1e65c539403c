// Package validation performs static sanity checks over an AgentConfig.
package validation

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentforge/core"
)

// Severity grades an Issue.
type Severity string

const (
	// SeverityWarning is a non-fatal finding.
	SeverityWarning Severity = "warning"
	// SeverityError prevents the agent from running.
	SeverityError Severity = "error"
)

// Issue is a single finding against one config field.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s (%s)", i.Field, i.Message, i.Severity)
}

// Report is the result of validating one config.
type Report struct {
	Agent  string  `json:"agent"`
	Issues []Issue `json:"issues"`
}

// Valid reports whether no error-level issue was found.
func (r Report) Valid() bool { return !r.HasErrors() }

// HasErrors reports whether any issue has SeverityError.
func (r Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Errors returns the error-level issues.
func (r Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-level issues.
func (r Report) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r Report) filter(s Severity) []Issue {
	var out []Issue

	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}

	return out
}

// Validate checks cfg and returns a report.
func Validate(cfg core.AgentConfig) Report {
	report := Report{Agent: cfg.Name}

	add := func(field, msg string, s Severity) {
		report.Issues = append(report.Issues, Issue{Field: field, Message: msg, Severity: s})
	}

	if strings.TrimSpace(cfg.Name) == "" {
		add("name", "Agent name cannot be empty", SeverityError)
	}

	if cfg.Capability == "" {
		add("capability", "Agent capability must be defined", SeverityError)
	}

	switch {
	case cfg.Temperature < 0 || cfg.Temperature > 2:
		add("temperature", "Temperature must be between 0.0 and 2.0", SeverityError)
	case cfg.Temperature > 1:
		add("temperature", "High temperature (>1.0) may cause hallucinations", SeverityWarning)
	}

	if cfg.SystemPrompt == "" {
		add("system_prompt", "System prompt is empty", SeverityWarning)
	}

	if cfg.MaxOutputTokens != nil && *cfg.MaxOutputTokens <= 0 {
		add("max_output_tokens", "Max output tokens must be positive", SeverityError)
	}

	if !cfg.ExecutionStrategy.Valid() {
		add("execution_strategy", fmt.Sprintf("Unknown execution strategy: %s", cfg.ExecutionStrategy), SeverityError)
		return report
	}

	switch cfg.Strategy() {
	case core.StrategyIterativeLoop:
		if cfg.MaxIterations < 1 {
			add("max_iterations", "Iterative loop requires max_iterations >= 1", SeverityError)
		}
	case core.StrategyWorkflow:
		validateWorkflow(cfg, add)
	}

	return report
}

func validateWorkflow(cfg core.AgentConfig, add func(field, msg string, s Severity)) {
	switch t := cfg.WorkflowType(); t {
	case "":
		add("workflow_parameters", "Workflow strategy requires workflow_parameters.type", SeverityError)
	case "map_reduce":
		splitter, _ := cfg.WorkflowParameters["splitter"].(string)
		reducer, _ := cfg.WorkflowParameters["reducer"].(string)

		if splitter == "" || reducer == "" {
			add("workflow_parameters", "Map-Reduce requires 'splitter' and 'reducer'", SeverityError)
		}

		_, hasMapper := cfg.WorkflowParameters["mapper"]
		_, hasMappers := cfg.WorkflowParameters["mappers"]

		if !hasMapper && !hasMappers {
			add("workflow_parameters", "Map-Reduce without 'mapper' or 'mappers' yields error results for every task", SeverityWarning)
		}
	default:
		add("workflow_parameters", fmt.Sprintf("Unknown workflow type: %s", t), SeverityError)
	}
}
