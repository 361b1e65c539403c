// Package experiment maps a public agent name onto weighted variant names for
// A/B testing.
package experiment

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"sync"
)

// Variant is a variant name with its normalized weight.
type Variant struct {
	Name   string
	Weight float64
}

// Options configures a Registry.
type Options struct {
	// Float returns a uniform number in [0, 1). Defaults to math/rand/v2.
	Float func() float64
}

// Registry stores experiments keyed by public name.
type Registry struct {
	mu          sync.RWMutex
	experiments map[string][]Variant
	float       func() float64
}

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{Float: rand.Float64}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{experiments: map[string][]Variant{}, float: opts.Float}
}

// Register stores an experiment. Weights are normalized to sum to 1 here,
// once, and variants are kept sorted by name.
func (r *Registry) Register(publicName string, weights map[string]float64) error {
	if len(weights) == 0 {
		return errors.New("experiment: at least one variant is required")
	}

	total := 0.0

	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("experiment %s: negative weight for variant %s", publicName, name)
		}

		total += w
	}

	if total <= 0 {
		return fmt.Errorf("experiment %s: weights must sum to a positive value", publicName)
	}

	variants := make([]Variant, 0, len(weights))
	for name, w := range weights {
		variants = append(variants, Variant{Name: name, Weight: w / total})
	}

	sort.Slice(variants, func(i, j int) bool { return variants[i].Name < variants[j].Name })

	r.mu.Lock()
	defer r.mu.Unlock()

	r.experiments[publicName] = variants

	return nil
}

// Variants returns the normalized variants of an experiment.
func (r *Registry) Variants(publicName string) ([]Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.experiments[publicName]
	if !ok {
		return nil, false
	}

	return append([]Variant(nil), v...), true
}

// Resolve returns name unchanged when no experiment is registered for it,
// otherwise an independent weighted random draw among the variants.
func (r *Registry) Resolve(name string) string {
	r.mu.RLock()
	variants, ok := r.experiments[name]
	r.mu.RUnlock()

	if !ok {
		return name
	}

	return pick(variants, r.float())
}

// ResolveFor is the sticky variant of Resolve: the same subject always maps
// to the same variant while the experiment is unchanged.
func (r *Registry) ResolveFor(name, subject string) string {
	r.mu.RLock()
	variants, ok := r.experiments[name]
	r.mu.RUnlock()

	if !ok {
		return name
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(subject))

	return pick(variants, float64(h.Sum64()>>11)/float64(1<<53))
}

func pick(variants []Variant, x float64) string {
	acc := 0.0

	for _, v := range variants {
		if v.Weight <= 0 {
			continue
		}

		acc += v.Weight
		if x < acc {
			return v.Name
		}
	}

	// rounding can leave x just above the accumulated sum
	for i := len(variants) - 1; i >= 0; i-- {
		if variants[i].Weight > 0 {
			return variants[i].Name
		}
	}

	return variants[len(variants)-1].Name
}
