package engine

import (
	"context"
	"time"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/experiment"
	"github.com/hupe1980/agentforge/llm"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/registry"
	"github.com/hupe1980/agentforge/router"
	"github.com/hupe1980/agentforge/scheduler"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/tracing"
)

// ConfigResolver produces effective agent configurations. *config.Service
// satisfies it.
type ConfigResolver interface {
	Effective(ctx context.Context, name string) (core.AgentConfig, error)
}

// LookupFunc resolves a tool name in the caller's dependency scope before the
// tool registry is consulted.
type LookupFunc func(name string) (tool.Source, bool)

// Options configures an Engine. Nil components get in-memory defaults except
// Configs and Factory, which are required.
type Options struct {
	Configs     ConfigResolver
	Factory     llm.Factory
	Agents      *registry.AgentRegistry
	Tools       *registry.ToolRegistry
	Router      *router.Router
	Experiments *experiment.Registry
	Limiter     *scheduler.Limiter
	Collector   *tracing.Collector
	Metrics     *metrics.Metrics
	Callbacks   *CallbackManager
	Lookup      LookupFunc
	Logger      logging.Logger
}

// Engine locates and executes agents. It is safe for concurrent use.
type Engine struct {
	configs     ConfigResolver
	factory     llm.Factory
	agents      *registry.AgentRegistry
	tools       *registry.ToolRegistry
	router      *router.Router
	experiments *experiment.Registry
	limiter     *scheduler.Limiter
	collector   *tracing.Collector
	metrics     *metrics.Metrics
	callbacks   *CallbackManager
	lookup      LookupFunc
	logger      logging.Logger
	now         func() time.Time
}

// New creates an Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Agents == nil {
		opts.Agents = registry.NewAgentRegistry()
	}

	if opts.Tools == nil {
		opts.Tools = registry.NewToolRegistry()
	}

	if opts.Router == nil {
		opts.Router = router.New()
	}

	if opts.Experiments == nil {
		opts.Experiments = experiment.New()
	}

	if opts.Limiter == nil {
		opts.Limiter = scheduler.New()
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		configs:     opts.Configs,
		factory:     opts.Factory,
		agents:      opts.Agents,
		tools:       opts.Tools,
		router:      opts.Router,
		experiments: opts.Experiments,
		limiter:     opts.Limiter,
		collector:   opts.Collector,
		metrics:     opts.Metrics,
		callbacks:   opts.Callbacks,
		lookup:      opts.Lookup,
		logger:      logging.OrNoOp(opts.Logger),
		now:         time.Now,
	}
}

// Agent is the surface shared by declared and virtual agents.
type Agent interface {
	// Name returns the resolved agent name.
	Name() string
	// Run executes the agent with a single input.
	Run(ctx context.Context, input string) (string, error)
	// RunWithArgs executes the agent with named template arguments.
	RunWithArgs(ctx context.Context, args map[string]any) (string, error)
	// RunStructured executes the agent and parses the answer into out.
	RunStructured(ctx context.Context, input string, out any) error
}

var (
	_ Agent = (*DeclaredAgent)(nil)
	_ Agent = (*VirtualAgent)(nil)
)

// Agent resolves name to a runnable agent. The name first passes through the
// experiment registry. A registered Interface yields a DeclaredAgent;
// otherwise an effective config yields a VirtualAgent. Resolution failures
// report ok=false.
func (e *Engine) Agent(ctx context.Context, name string) (Agent, bool) {
	resolved := e.experiments.Resolve(name)
	if resolved == "" {
		return nil, false
	}

	if iface, ok := e.agents.Interface(resolved); ok && iface != nil {
		return e.declared(resolved, iface), true
	}

	if _, err := e.configs.Effective(ctx, resolved); err != nil {
		e.logger.Debug("engine.agent.not_found", "agent", resolved, "error", err.Error())
		return nil, false
	}

	return &VirtualAgent{engine: e, name: resolved}, true
}

// Declared returns the declared agent bound to iface. The interface's own
// Name is preferred; otherwise the registry is searched by identity.
func (e *Engine) Declared(iface *core.Interface) (*DeclaredAgent, bool) {
	if iface == nil {
		return nil, false
	}

	name := iface.Name
	if name == "" {
		n, ok := e.agents.NameOf(iface)
		if !ok {
			return nil, false
		}

		name = n
	}

	return e.declared(name, iface), true
}

// Virtual returns a virtual agent for name without consulting experiments or
// declarations.
func (e *Engine) Virtual(name string) *VirtualAgent {
	return &VirtualAgent{engine: e, name: name}
}

func (e *Engine) declared(name string, iface *core.Interface) *DeclaredAgent {
	return &DeclaredAgent{engine: e, name: name, iface: iface}
}

// Limiter returns the limiter bounding workflow fan-out.
func (e *Engine) Limiter() *scheduler.Limiter { return e.limiter }
