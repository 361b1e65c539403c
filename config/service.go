// Package config resolves the effective configuration of an agent from three
// layers: a remote source, local declarations and runtime overrides. It also
// loads YAML declaration files, watches them for changes and reads process
// settings from the environment.
package config

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/agentforge/core"
	"github.com/hupe1980/agentforge/logging"
)

// LocalStore provides locally declared configs. *registry.AgentRegistry
// satisfies it.
type LocalStore interface {
	Config(name string) (core.AgentConfig, bool)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Remote RemoteSource
	Logger logging.Logger
}

// Service merges remote, local and runtime override configuration.
type Service struct {
	remote RemoteSource
	local  LocalStore
	logger logging.Logger

	mu        sync.RWMutex
	overrides map[string]map[string]any
}

// NewService creates a Service over local. Without a remote source every
// remote lookup reports absence.
func NewService(local LocalStore, optFns ...func(o *ServiceOptions)) *Service {
	opts := ServiceOptions{
		Remote: NoopSource{},
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Remote == nil {
		opts.Remote = NoopSource{}
	}

	return &Service{
		remote:    opts.Remote,
		local:     local,
		logger:    logging.OrNoOp(opts.Logger),
		overrides: map[string]map[string]any{},
	}
}

// Effective returns the effective config for name. The remote config wins
// over the local declaration; fields of a runtime override replace the
// corresponding fields of either. With no base config a runtime override is
// applied onto the defaults. Remote failures are logged and treated as
// absence.
func (s *Service) Effective(ctx context.Context, name string) (core.AgentConfig, error) {
	base, found := s.fetchRemote(ctx, name)
	if !found && s.local != nil {
		base, found = s.local.Config(name)
	}

	overlay, hasOverlay := s.RuntimeOverride(name)

	switch {
	case found && hasOverlay:
		cfg := base.Clone()
		if err := core.ApplyOverlay(&cfg, overlay); err != nil {
			return core.AgentConfig{}, fmt.Errorf("%w: %s: %w", core.ErrInvalidOverride, name, err)
		}

		return cfg, nil
	case found:
		return base.Clone(), nil
	case hasOverlay:
		cfg := core.DefaultAgentConfig(name)
		if err := core.ApplyOverlay(&cfg, overlay); err != nil {
			return core.AgentConfig{}, fmt.Errorf("%w: %s: %w", core.ErrInvalidOverride, name, err)
		}

		if cfg.Name == "" {
			cfg.Name = name
		}

		return cfg, nil
	default:
		return core.AgentConfig{}, &core.ConfigurationNotFoundError{Agent: name}
	}
}

func (s *Service) fetchRemote(ctx context.Context, name string) (core.AgentConfig, bool) {
	cfg, err := s.remote.Fetch(ctx, name)
	if err != nil {
		s.logger.Warn("config.remote.fetch_failed", "agent", name, "error", err.Error())
		return core.AgentConfig{}, false
	}

	if cfg == nil {
		return core.AgentConfig{}, false
	}

	return *cfg, true
}

// SetRuntimeOverride merges fields into the override of name. Later values
// win per field. Fields that do not fit AgentConfig are rejected and leave
// the override unchanged.
func (s *Service) SetRuntimeOverride(name string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := maps.Clone(s.overrides[name])
	if merged == nil {
		merged = map[string]any{}
	}

	maps.Copy(merged, fields)

	if err := core.CheckOverlay(merged); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrInvalidOverride, name, err)
	}

	s.overrides[name] = merged

	return nil
}

// ClearRuntimeOverride removes the whole override of name.
func (s *Service) ClearRuntimeOverride(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.overrides, name)
}

// RuntimeOverride returns a copy of the override of name.
func (s *Service) RuntimeOverride(name string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overrides[name]
	if !ok {
		return nil, false
	}

	return maps.Clone(o), true
}

// Upsert writes cfg to the remote source.
func (s *Service) Upsert(ctx context.Context, cfg core.AgentConfig) error {
	return s.remote.Upsert(ctx, cfg)
}

// Close releases the remote source.
func (s *Service) Close() error {
	return s.remote.Close()
}
