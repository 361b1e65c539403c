package registry

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentforge/core"
)

type declaration struct {
	iface *core.Interface
	cfg   core.AgentConfig
}

// AgentRegistry stores local agent declarations: an interface shape plus the
// declared config.
type AgentRegistry struct {
	mu    sync.RWMutex
	decls map[string]declaration
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{decls: map[string]declaration{}}
}

// Register stores a declaration under name. iface may be nil for agents that
// are declared by configuration only.
func (r *AgentRegistry) Register(name string, iface *core.Interface, cfg core.AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg = cfg.Clone()
	cfg.Name = name
	r.decls[name] = declaration{iface: iface, cfg: cfg}
}

// Config returns a copy of the local config declared under name.
func (r *AgentRegistry) Config(name string) (core.AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decls[name]
	if !ok {
		return core.AgentConfig{}, false
	}

	return d.cfg.Clone(), true
}

// Interface returns the interface declared under name.
func (r *AgentRegistry) Interface(name string) (*core.Interface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.decls[name]
	if !ok || d.iface == nil {
		return nil, false
	}

	return d.iface, true
}

// NameOf searches the declarations for iface by identity.
func (r *AgentRegistry) NameOf(iface *core.Interface) (string, bool) {
	if iface == nil {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, d := range r.decls {
		if d.iface == iface {
			return name, true
		}
	}

	return "", false
}

// Names returns all declared agent names sorted.
func (r *AgentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.decls))
	for n := range r.decls {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
