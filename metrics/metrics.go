// Package metrics exposes Prometheus instruments for agent invocations, LLM
// calls, tool calls, workflow tasks and limiter occupancy. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentforge"

// Metrics holds the instruments registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	agentCalls    *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
	llmCalls      *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	workflowTasks *prometheus.CounterVec
	inFlight      prometheus.Gauge
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		agentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Agent invocations by agent and outcome.",
		}, []string{"agent", "outcome"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_invocation_duration_seconds",
			Help:      "Agent invocation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM calls by model, method and outcome.",
		}, []string{"model", "method", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "LLM call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		workflowTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_tasks_total",
			Help:      "Map-reduce task items by workflow and outcome.",
		}, []string{"workflow", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limiter_in_flight",
			Help:      "Work items currently holding a concurrency slot.",
		}),
	}

	m.registry.MustRegister(
		m.agentCalls,
		m.agentDuration,
		m.llmCalls,
		m.llmDuration,
		m.toolCalls,
		m.workflowTasks,
		m.inFlight,
	)

	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

// ObserveAgent records one agent invocation.
func (m *Metrics) ObserveAgent(agent string, d time.Duration, err error) {
	if m == nil {
		return
	}

	m.agentCalls.WithLabelValues(agent, outcome(err)).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// ObserveLLM records one model call.
func (m *Metrics) ObserveLLM(model, method string, d time.Duration, err error) {
	if m == nil {
		return
	}

	m.llmCalls.WithLabelValues(model, method, outcome(err)).Inc()
	m.llmDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveTool records one tool call.
func (m *Metrics) ObserveTool(tool string, err error) {
	if m == nil {
		return
	}

	m.toolCalls.WithLabelValues(tool, outcome(err)).Inc()
}

// ObserveTask records one workflow task item.
func (m *Metrics) ObserveTask(workflow string, err error) {
	if m == nil {
		return
	}

	m.workflowTasks.WithLabelValues(workflow, outcome(err)).Inc()
}

// SetInFlight reports the limiter's current occupancy.
func (m *Metrics) SetInFlight(n int) {
	if m == nil {
		return
	}

	m.inFlight.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
