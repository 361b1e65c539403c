// Package agentforge provides a high-level façade over the engine and its
// supporting services (configuration, routing, experiments, tools, tracing
// and metrics). Most applications interact with this package by:
//  1. Creating a System via New() (settings are read from the environment)
//  2. Declaring agents (DeclareAgent) or loading a YAML declaration file
//  3. Resolving agents by name (Agent) and running them
//
// The façade delegates execution to engine.Engine while keeping setup and
// usage concise. All defaults are in-memory and safe for local development;
// production deployments typically configure a remote config backend and a
// trace exporter.
package agentforge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/agentforge/config"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/experiment"
	"github.com/hupe1980/agentforge/llm"
	"github.com/hupe1980/agentforge/logging"
	"github.com/hupe1980/agentforge/metrics"
	"github.com/hupe1980/agentforge/registry"
	"github.com/hupe1980/agentforge/router"
	"github.com/hupe1980/agentforge/scheduler"
	"github.com/hupe1980/agentforge/tool"
	"github.com/hupe1980/agentforge/tracing"
	"github.com/hupe1980/agentforge/validation"
)

// Phase is a lifecycle phase of a System.
type Phase string

// Lifecycle phases in the order a System passes through them.
const (
	PhaseInitializing Phase = "initializing"
	PhaseReady        Phase = "ready"
	PhaseRunning      Phase = "running"
	PhaseShuttingDown Phase = "shutting_down"
	PhaseStopped      Phase = "stopped"
)

// ErrStopped is returned by operations on a System that was shut down.
var ErrStopped = errors.New("agentforge: system is stopped")

// Options configures the System.
type Options struct {
	// Settings are the process settings. New uses config.DefaultSettings
	// when left zero; call config.LoadSettings to read the environment.
	Settings config.Settings

	// Logger defaults to a slog logger built from Settings.
	Logger logging.Logger

	// Factory builds model handles. Defaults to llm.NewFactory with
	// credentials from the environment and circuit breaking enabled.
	Factory llm.Factory

	// Remote is the remote configuration source. Defaults to the backend
	// selected by Settings.Remote.
	Remote config.RemoteSource

	// Metrics defaults to a fresh Prometheus registry.
	Metrics *metrics.Metrics

	// Callbacks are registered on the engine in order.
	Callbacks []engine.Callback
}

// System aggregates the engine and the services it depends on.
type System struct {
	settings    config.Settings
	logger      logging.Logger
	provider    *tracing.Provider
	collector   *tracing.Collector
	metrics     *metrics.Metrics
	router      *router.Router
	agents      *registry.AgentRegistry
	tools       *registry.ToolRegistry
	experiments *experiment.Registry
	configs     *config.Service
	limiter     *scheduler.Limiter
	engine      *engine.Engine

	mu          sync.RWMutex
	phase       Phase
	scope       map[string]tool.Source
	pendingTags map[string][]string
	toolsets    map[string]*tool.MCPToolset
}

// New creates a System and moves it to PhaseReady.
func New(ctx context.Context, optFns ...func(o *Options)) (*System, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Settings.MaxConcurrency == 0 {
		opts.Settings = config.DefaultSettings()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewSlogLogger(logging.ParseLevel(opts.Settings.LogLevel), opts.Settings.LogFormat, false).
			WithComponent("agentforge")
	}

	s := &System{
		settings:    opts.Settings,
		logger:      opts.Logger,
		phase:       PhaseInitializing,
		scope:       map[string]tool.Source{},
		pendingTags: map[string][]string{},
		toolsets:    map[string]*tool.MCPToolset{},
	}

	s.logger.Info("agentforge.phase", "phase", string(PhaseInitializing))

	provider, err := tracing.NewProvider(ctx, tracing.ExporterConfig{
		Exporter:     opts.Settings.TraceExporter,
		Endpoint:     opts.Settings.OTLPEndpoint,
		ServiceName:  opts.Settings.ServiceName,
		SamplingRate: opts.Settings.SamplingRate,
	})
	if err != nil {
		return nil, err
	}

	s.provider = provider

	s.collector = tracing.NewCollector(func(o *tracing.Options) {
		o.Logger = s.logger
		if opts.Settings.TraceExporter != "" && opts.Settings.TraceExporter != tracing.ExporterNone {
			o.Tracer = provider.Tracer()
		}
	})

	s.metrics = opts.Metrics
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	remote := opts.Remote
	if remote == nil {
		remote, err = config.OpenRemote(opts.Settings)
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, err
		}
	}

	s.router = router.New()
	s.agents = registry.NewAgentRegistry()
	s.tools = registry.NewToolRegistry()
	s.experiments = experiment.New()
	s.configs = config.NewService(s.agents, func(o *config.ServiceOptions) {
		o.Remote = remote
		o.Logger = s.logger
	})
	s.limiter = scheduler.New(func(o *scheduler.Options) {
		o.Limit = opts.Settings.MaxConcurrency
		o.OnChange = s.metrics.SetInFlight
	})

	factory := opts.Factory
	if factory == nil {
		factory = llm.NewFactory(func(o *llm.FactoryOptions) {
			o.Credentials = llm.CredentialsFromEnv()
			o.Collector = s.collector
			o.Metrics = s.metrics
			o.Logger = s.logger
			o.CircuitBreaker = true
		})
	}

	callbacks := engine.NewCallbackManager()
	for _, cb := range opts.Callbacks {
		callbacks.RegisterCallback(cb)
	}

	s.engine = engine.New(func(o *engine.Options) {
		o.Configs = s.configs
		o.Factory = factory
		o.Agents = s.agents
		o.Tools = s.tools
		o.Router = s.router
		o.Experiments = s.experiments
		o.Limiter = s.limiter
		o.Collector = s.collector
		o.Metrics = s.metrics
		o.Callbacks = callbacks
		o.Lookup = s.lookup
		o.Logger = s.logger
	})

	s.setPhase(PhaseReady)

	return s, nil
}

// Phase returns the current lifecycle phase.
func (s *System) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.phase
}

func (s *System) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()

	s.logger.Info("agentforge.phase", "phase", string(p))
}

func (s *System) stopped() bool {
	p := s.Phase()
	return p == PhaseShuttingDown || p == PhaseStopped
}

// Settings returns the settings the system was built with.
func (s *System) Settings() config.Settings { return s.settings }

// Engine returns the underlying engine.
func (s *System) Engine() *engine.Engine { return s.engine }

// Configs returns the configuration service.
func (s *System) Configs() *config.Service { return s.configs }

// Collector returns the trace collector.
func (s *System) Collector() *tracing.Collector { return s.collector }

// Metrics returns the Prometheus instruments.
func (s *System) Metrics() *metrics.Metrics { return s.metrics }

// Router returns the capability router.
func (s *System) Router() *router.Router { return s.router }

// Agents returns the agent declaration registry.
func (s *System) Agents() *registry.AgentRegistry { return s.agents }

// Tools returns the tool registry.
func (s *System) Tools() *registry.ToolRegistry { return s.tools }

// Agent resolves name to a runnable agent. The first successful resolution
// moves the system from PhaseReady to PhaseRunning.
func (s *System) Agent(ctx context.Context, name string) (engine.Agent, bool) {
	if s.stopped() {
		return nil, false
	}

	a, ok := s.engine.Agent(ctx, name)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	transition := s.phase == PhaseReady
	if transition {
		s.phase = PhaseRunning
	}
	s.mu.Unlock()

	if transition {
		s.logger.Info("agentforge.phase", "phase", string(PhaseRunning))
	}

	return a, true
}

// DeclareAgent registers iface with its local configuration and returns the
// typed handle. cfg.Name defaults to iface.Name. Configurations with
// validation errors are rejected; warnings are logged.
func (s *System) DeclareAgent(iface *core.Interface, cfg core.AgentConfig) (*engine.DeclaredAgent, error) {
	if s.stopped() {
		return nil, ErrStopped
	}

	if iface == nil || iface.Name == "" {
		return nil, errors.New("agent interface requires a name")
	}

	if cfg.Name == "" {
		cfg.Name = iface.Name
	}

	if err := s.check(cfg); err != nil {
		return nil, err
	}

	s.agents.Register(iface.Name, iface, cfg)

	a, ok := s.engine.Declared(iface)
	if !ok {
		return nil, fmt.Errorf("agent %s: declaration not found after registration", iface.Name)
	}

	return a, nil
}

// CreateAgent stores fields as the runtime override of name and returns a
// virtual agent for it. An agent without any base configuration is
// synthesized from the defaults.
func (s *System) CreateAgent(name string, fields map[string]any) (*engine.VirtualAgent, error) {
	if s.stopped() {
		return nil, ErrStopped
	}

	if err := s.configs.SetRuntimeOverride(name, fields); err != nil {
		return nil, err
	}

	return s.engine.Virtual(name), nil
}

// CreateTool registers a function tool and returns it.
func (s *System) CreateTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
	tags ...string,
) *tool.FunctionTool {
	t := tool.NewFunctionTool(name, description, parameters, fn)
	s.RegisterTool(name, t, tags...)

	return t
}

// RegisterTool registers src under name. Tags declared for name in a loaded
// declaration file are applied as well.
func (s *System) RegisterTool(name string, src tool.Source, tags ...string) {
	s.mu.Lock()
	pending := s.pendingTags[name]
	delete(s.pendingTags, name)
	s.mu.Unlock()

	s.tools.Register(name, src, slices.Concat(tags, pending)...)
}

// Provide makes src resolvable by name ahead of the tool registry. Provided
// sources are not discoverable by tag.
func (s *System) Provide(name string, src tool.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scope[name] = src
}

func (s *System) lookup(name string) (tool.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.scope[name]

	return src, ok
}

// UpdateCapability points capability at model for subsequent invocations.
func (s *System) UpdateCapability(capability core.Capability, model string) {
	s.router.UpdateMapping(capability, model)
}

// RegisterExperiment registers an A/B experiment under publicName.
func (s *System) RegisterExperiment(publicName string, weights map[string]float64) error {
	return s.experiments.Register(publicName, weights)
}

// LoadDeclarations reads a declaration file and applies it.
func (s *System) LoadDeclarations(ctx context.Context, path string) error {
	d, err := config.LoadFile(path)
	if err != nil {
		return err
	}

	return s.Apply(ctx, d)
}

// Apply applies parsed declarations: capability mappings, experiments, agent
// configurations, tool tags and MCP servers. Agents already declared with an
// interface keep it. MCP servers already connected are not reconnected.
func (s *System) Apply(ctx context.Context, d *config.Declarations) error {
	if s.stopped() {
		return ErrStopped
	}

	for capability, model := range d.Capabilities {
		s.router.UpdateMapping(core.Capability(capability), model)
	}

	for _, name := range d.ExperimentNames() {
		if err := s.experiments.Register(name, d.Experiments[name]); err != nil {
			return fmt.Errorf("experiment %s: %w", name, err)
		}
	}

	cfgs, err := d.AgentConfigs()
	if err != nil {
		return err
	}

	for _, cfg := range cfgs {
		if err := s.check(cfg); err != nil {
			return err
		}
	}

	for _, cfg := range cfgs {
		iface, _ := s.agents.Interface(cfg.Name)
		s.agents.Register(cfg.Name, iface, cfg)
	}

	for name, tags := range d.ToolTags {
		if src, ok := s.tools.Get(name); ok {
			s.tools.Register(name, src, tags...)
			continue
		}

		s.mu.Lock()
		s.pendingTags[name] = append(s.pendingTags[name], tags...)
		s.mu.Unlock()
	}

	for _, server := range d.MCPServers {
		if err := s.connectMCP(ctx, server); err != nil {
			return err
		}
	}

	s.logger.Info("agentforge.declarations.applied",
		"agents", len(cfgs),
		"experiments", len(d.Experiments),
		"mcp_servers", len(d.MCPServers),
	)

	return nil
}

// ConnectMCP starts an MCP server and registers its tools under the
// server tags.
func (s *System) ConnectMCP(ctx context.Context, server tool.MCPServer) error {
	return s.connectMCP(ctx, server)
}

func (s *System) connectMCP(ctx context.Context, server tool.MCPServer) error {
	s.mu.RLock()
	_, connected := s.toolsets[server.Name]
	s.mu.RUnlock()

	if connected {
		return nil
	}

	ts, err := tool.ConnectMCP(logging.WithLogger(ctx, s.logger), server)
	if err != nil {
		return err
	}

	return s.AddToolset(ts)
}

// AddToolset registers the tools of a connected MCP toolset. The toolset is
// closed on Shutdown.
func (s *System) AddToolset(ts *tool.MCPToolset) error {
	server := ts.Server()

	s.mu.Lock()
	if _, ok := s.toolsets[server.Name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("mcp server %q already connected", server.Name)
	}

	s.toolsets[server.Name] = ts
	s.mu.Unlock()

	for _, t := range ts.Tools() {
		s.RegisterTool(t.Name(), t, server.Tags...)
	}

	return nil
}

// WatchDeclarations reapplies the declaration file whenever it changes until
// ctx is done. Reload failures are logged and the previous state is kept.
func (s *System) WatchDeclarations(ctx context.Context, path string) error {
	events, err := config.WatchFile(ctx, path, s.logger)
	if err != nil {
		return err
	}

	go func() {
		for range events {
			if err := s.LoadDeclarations(ctx, path); err != nil {
				s.logger.Warn("agentforge.declarations.reload_failed", "path", path, "error", err.Error())
				continue
			}

			s.logger.Info("agentforge.declarations.reloaded", "path", path)
		}
	}()

	return nil
}

func (s *System) check(cfg core.AgentConfig) error {
	report := validation.Validate(cfg)

	for _, w := range report.Warnings() {
		s.logger.Warn("agentforge.config.warning", "agent", cfg.Name, "field", w.Field, "message", w.Message)
	}

	if !report.HasErrors() {
		return nil
	}

	msgs := make([]string, 0, len(report.Errors()))
	for _, e := range report.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("agent %s: invalid configuration: %s", cfg.Name, strings.Join(msgs, "; "))
}

// Shutdown clears collected traces, closes MCP servers and the remote
// configuration source and flushes the trace exporter. Calling Shutdown more
// than once is a no-op.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == PhaseShuttingDown || s.phase == PhaseStopped {
		s.mu.Unlock()
		return nil
	}

	toolsets := s.toolsets
	s.toolsets = map[string]*tool.MCPToolset{}
	s.mu.Unlock()

	s.setPhase(PhaseShuttingDown)

	var errs []error

	for name, ts := range toolsets {
		if err := ts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mcp server %q: %w", name, err))
		}
	}

	if err := s.configs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close remote config: %w", err))
	}

	if err := s.provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}

	s.collector.Clear()

	s.setPhase(PhaseStopped)

	return errors.Join(errs...)
}
