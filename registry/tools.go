// Package registry stores named tools with tag groups and named agent
// declarations. Lookups never fail; absence is reported with ok=false.
package registry

import (
	"slices"
	"sort"
	"sync"

	"github.com/hupe1980/agentforge/tool"
)

// GlobalTag marks tools attached to every agent.
const GlobalTag = "global"

// ToolRegistry stores tool sources by name and groups names by tag.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]tool.Source
	tags  map[string][]string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: map[string]tool.Source{},
		tags:  map[string][]string{},
	}
}

// Register stores src under name and appends name to every tag group.
// Registering a name again replaces the stored source and adds tag
// memberships without removing earlier ones.
func (r *ToolRegistry) Register(name string, src tool.Source, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[name] = src

	for _, tag := range tags {
		if !slices.Contains(r.tags[tag], name) {
			r.tags[tag] = append(r.tags[tag], name)
		}
	}
}

// Get returns the source registered under name.
func (r *ToolRegistry) Get(name string) (tool.Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.tools[name]

	return src, ok
}

// NamesByTag returns the tool names associated with tag.
func (r *ToolRegistry) NamesByTag(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.tags[tag])
}

// Names returns all registered tool names sorted.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// GetByTags collects the sources matching any of tags in tag order, followed
// by every tool tagged "global". Sources already collected are skipped by
// identity.
func (r *ToolRegistry) GetByTags(tags []string) []tool.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []tool.Source

	add := func(tag string) {
		for _, name := range r.tags[tag] {
			src, ok := r.tools[name]
			if !ok || src == nil || slices.Contains(found, src) {
				continue
			}

			found = append(found, src)
		}
	}

	for _, tag := range tags {
		add(tag)
	}

	add(GlobalTag)

	return found
}
