package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentforge/core"
)

// RemoteSource is a central configuration backend.
type RemoteSource interface {
	// Fetch returns nil without error when name has no remote config.
	Fetch(ctx context.Context, name string) (*core.AgentConfig, error)
	Upsert(ctx context.Context, cfg core.AgentConfig) error
	Close() error
}

// NoopSource reports no remote config for every name and ignores writes.
type NoopSource struct{}

// Fetch implements RemoteSource.
func (NoopSource) Fetch(context.Context, string) (*core.AgentConfig, error) { return nil, nil }

// Upsert implements RemoteSource.
func (NoopSource) Upsert(context.Context, core.AgentConfig) error { return nil }

// Close implements RemoteSource.
func (NoopSource) Close() error { return nil }

// KVStore is the byte level contract of a key-value backend.
type KVStore interface {
	// Get returns found=false without error for a missing key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "agentforge/agents"

// KVSource stores one YAML document per agent under prefix/name.
type KVSource struct {
	store  KVStore
	prefix string
	kind   string
}

// NewKVSource wraps store. kind names the backend in errors.
func NewKVSource(store KVStore, prefix, kind string) *KVSource {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &KVSource{store: store, prefix: prefix, kind: kind}
}

// Key returns the storage key of an agent.
func (s *KVSource) Key(name string) string {
	return path.Join(s.prefix, name)
}

// Fetch implements RemoteSource. Documents may be partial; missing fields
// take the defaults.
func (s *KVSource) Fetch(ctx context.Context, name string) (*core.AgentConfig, error) {
	data, found, err := s.store.Get(ctx, s.Key(name))
	if err != nil {
		return nil, fmt.Errorf("%s: get %s: %w", s.kind, s.Key(name), err)
	}

	if !found || len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	cfg, err := DecodeAgentConfig(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.kind, err)
	}

	return &cfg, nil
}

// Upsert implements RemoteSource.
func (s *KVSource) Upsert(ctx context.Context, cfg core.AgentConfig) error {
	data, err := EncodeAgentConfig(cfg)
	if err != nil {
		return err
	}

	if err := s.store.Put(ctx, s.Key(cfg.Name), data); err != nil {
		return fmt.Errorf("%s: put %s: %w", s.kind, s.Key(cfg.Name), err)
	}

	return nil
}

// Close implements RemoteSource.
func (s *KVSource) Close() error { return s.store.Close() }

// DecodeAgentConfig decodes a YAML (or JSON) document onto the defaults of
// name.
func DecodeAgentConfig(name string, data []byte) (core.AgentConfig, error) {
	var fields map[string]any
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return core.AgentConfig{}, fmt.Errorf("decode config %s: %w", name, err)
	}

	return configFromFields(name, fields)
}

func configFromFields(name string, fields map[string]any) (core.AgentConfig, error) {
	cfg := core.DefaultAgentConfig(name)
	if err := core.ApplyOverlay(&cfg, fields); err != nil {
		return core.AgentConfig{}, fmt.Errorf("decode config %s: %w", name, err)
	}

	if cfg.Name == "" {
		cfg.Name = name
	}

	return cfg, nil
}

// EncodeAgentConfig renders cfg as YAML.
func EncodeAgentConfig(cfg core.AgentConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config %s: %w", cfg.Name, err)
	}

	return data, nil
}
