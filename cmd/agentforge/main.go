// Command agentforge runs and inspects agents declared in a YAML file.
//
// Usage:
//
//	agentforge run --config agents.yaml --agent writer --input "Write a haiku"
//	agentforge run --config agents.yaml --agent translator --arg text=Hello --arg lang=French
//	agentforge validate --config agents.yaml
//	agentforge list --config agents.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/hupe1980/agentforge"
	"github.com/hupe1980/agentforge/config"
	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/engine"
	"github.com/hupe1980/agentforge/validation"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Run an agent once."`
	Validate ValidateCmd `cmd:"" help:"Validate a declaration file."`
	List     ListCmd     `cmd:"" help:"List declared agents, experiments and capabilities."`

	Config   string   `short:"c" help:"Path to the declaration file." type:"path" env:"AGENTFORGE_DECLARATIONS"`
	EnvFile  []string `name:"env-file" help:"Dotenv files to load (default .env)." type:"path"`
	LogLevel string   `help:"Log level (debug, info, warn, error). Overrides AGENTFORGE_LOG_LEVEL."`
}

func (c *CLI) settings() (config.Settings, error) {
	s, err := config.LoadSettings(c.EnvFile...)
	if err != nil {
		return s, err
	}

	if c.LogLevel != "" {
		s.LogLevel = c.LogLevel
	}

	if c.Config == "" {
		c.Config = s.Declarations
	}

	return s, nil
}

func (c *CLI) declarations() (*config.Declarations, error) {
	if c.Config == "" {
		return nil, errors.New("no declaration file: use --config or AGENTFORGE_DECLARATIONS")
	}

	return config.LoadFile(c.Config)
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}

	fmt.Printf("agentforge version %s\n", version)

	return nil
}

// RunCmd executes one agent and prints its answer.
type RunCmd struct {
	Agent       string            `short:"a" required:"" help:"Agent name (experiments are resolved)."`
	Input       string            `short:"i" help:"Single input passed as {input}."`
	Arg         map[string]string `help:"Named template argument (key=value), repeatable."`
	Async       bool              `help:"Run through the asynchronous entry point with --input (virtual agents only)."`
	Trace       bool              `help:"Print the collected trace runs as JSON after the answer."`
	MetricsAddr string            `name:"metrics-addr" help:"Serve Prometheus metrics on this address while running." placeholder:"HOST:PORT"`
	Timeout     time.Duration     `help:"Overall timeout." default:"5m"`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, c.Timeout)
	defer cancelTimeout()

	settings, err := cli.settings()
	if err != nil {
		return err
	}

	sys, err := agentforge.New(ctx, func(o *agentforge.Options) {
		o.Settings = settings
	})
	if err != nil {
		return fmt.Errorf("failed to create system: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = sys.Shutdown(shutdownCtx)
	}()

	if cli.Config != "" {
		if err := sys.LoadDeclarations(ctx, cli.Config); err != nil {
			return err
		}
	}

	addr := c.MetricsAddr
	if addr == "" {
		addr = settings.MetricsAddr
	}

	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: sys.Metrics().Handler(), ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()

		defer func() { _ = srv.Close() }()
	}

	out, err := c.invoke(ctx, sys)
	if err != nil {
		return err
	}

	fmt.Println(out)

	if c.Trace {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(sys.Collector().Runs())
	}

	return nil
}

func (c *RunCmd) invoke(ctx context.Context, sys *agentforge.System) (string, error) {
	a, ok := sys.Agent(ctx, c.Agent)
	if !ok {
		return "", fmt.Errorf("agent %q not found", c.Agent)
	}

	args := make(map[string]any, len(c.Arg)+1)
	for k, v := range c.Arg {
		args[k] = v
	}

	if c.Input != "" {
		args["input"] = c.Input
	}

	if c.Async {
		v, ok := a.(*engine.VirtualAgent)
		if !ok {
			return "", fmt.Errorf("agent %q has no asynchronous entry point", c.Agent)
		}

		return engine.Await(ctx, v.RunAsync(ctx, c.Input))
	}

	if len(c.Arg) == 0 {
		return a.Run(ctx, c.Input)
	}

	return a.RunWithArgs(ctx, args)
}

// ValidateCmd checks every agent of a declaration file.
type ValidateCmd struct {
	Strict bool `help:"Treat warnings as errors."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	if _, err := cli.settings(); err != nil {
		return err
	}

	d, err := cli.declarations()
	if err != nil {
		return err
	}

	cfgs, err := d.AgentConfigs()
	if err != nil {
		return err
	}

	failed := 0

	for _, cfg := range cfgs {
		report := validation.Validate(cfg)

		status := "ok"

		switch {
		case report.HasErrors():
			status = "invalid"
			failed++
		case c.Strict && len(report.Warnings()) > 0:
			status = "warnings"
			failed++
		}

		fmt.Printf("%s: %s\n", cfg.Name, status)

		for _, issue := range report.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}

	for _, name := range d.ExperimentNames() {
		weights := d.Experiments[name]
		for variant := range weights {
			if !slices.ContainsFunc(cfgs, func(cfg core.AgentConfig) bool { return cfg.Name == variant }) {
				fmt.Printf("experiment %s: variant %s is not declared in this file\n", name, variant)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d agents failed validation", failed, len(cfgs))
	}

	return nil
}

// ListCmd prints the contents of a declaration file.
type ListCmd struct{}

func (c *ListCmd) Run(cli *CLI) error {
	if _, err := cli.settings(); err != nil {
		return err
	}

	d, err := cli.declarations()
	if err != nil {
		return err
	}

	cfgs, err := d.AgentConfigs()
	if err != nil {
		return err
	}

	fmt.Println("Agents:")

	for _, cfg := range cfgs {
		desc := cfg.Description
		if desc == "" {
			desc = "(no description)"
		}

		fmt.Printf("  - %s [%s, %s]: %s\n", cfg.Name, cfg.Capability, cfg.Strategy(), desc)
	}

	if names := d.ExperimentNames(); len(names) > 0 {
		fmt.Println("Experiments:")

		for _, name := range names {
			fmt.Printf("  - %s: %v\n", name, d.Experiments[name])
		}
	}

	if len(d.Capabilities) > 0 {
		fmt.Println("Capabilities:")

		keys := make([]string, 0, len(d.Capabilities))
		for k := range d.Capabilities {
			keys = append(keys, k)
		}

		slices.Sort(keys)

		for _, k := range keys {
			fmt.Printf("  - %s -> %s\n", k, d.Capabilities[k])
		}
	}

	for _, server := range d.MCPServers {
		fmt.Printf("MCP server %s: %s %v\n", server.Name, server.Command, server.Args)
	}

	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentforge"),
		kong.Description("agentforge - config-driven agent orchestration"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
