// Package router maps abstract capability labels to concrete model identifiers.
package router

import (
	"maps"
	"sync"

	"github.com/hupe1980/agentforge/core"
)

// DefaultModel is returned for capability labels without a mapping.
const DefaultModel = "gpt-5.1"

// DefaultMappings returns the built-in capability table.
func DefaultMappings() map[core.Capability]string {
	return map[core.Capability]string{
		core.CapabilityFast:      "gpt-5-mini",
		core.CapabilitySmart:     "gpt-5.1",
		core.CapabilityReasoning: "gemini-3-pro",
		core.CapabilityVision:    "gpt-4o",
		core.CapabilityCoding:    "claude-3-5-sonnet",
	}
}

// Options configures a Router.
type Options struct {
	// Mappings seeds the table. Defaults to DefaultMappings().
	Mappings map[core.Capability]string
	// Fallback is returned for unknown labels. Defaults to DefaultModel.
	Fallback string
}

// Router resolves capability labels. Mutations are last-write-wins and apply
// to all subsequent resolutions.
type Router struct {
	mu       sync.RWMutex
	table    map[core.Capability]string
	fallback string
}

// New creates a Router.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		Mappings: DefaultMappings(),
		Fallback: DefaultModel,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Router{table: maps.Clone(opts.Mappings), fallback: opts.Fallback}
}

// Resolve returns override when non-empty, else the mapped model for
// capability, else the fallback model. It never fails.
func (r *Router) Resolve(capability core.Capability, override string) string {
	if override != "" {
		return override
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if model, ok := r.table[capability]; ok {
		return model
	}

	return r.fallback
}

// UpdateMapping sets the model used for capability.
func (r *Router) UpdateMapping(capability core.Capability, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.table == nil {
		r.table = map[core.Capability]string{}
	}

	r.table[capability] = model
}

// Mappings returns a snapshot of the table.
func (r *Router) Mappings() map[core.Capability]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.table)
}
