package knowledge

import (
	"fmt"
	"sync/atomic"

	"github.com/inkrouter/ink-router/internal/pkg/errors"
	"github.com/inkrouter/ink-router/internal/pkg/hash"
)

// Registry is an immutable, ordered set of pipelines. It is safe for
// unsynchronized concurrent reads because nothing mutates it post-build.
type Registry struct {
	pipelines []Pipeline
	byName    map[string]*Pipeline

	// keywordSets caches each pipeline's aggregate keyword set for the
	// classifier, keyed by pipeline name.
	keywordSets map[string]map[string]bool
}

// NewRegistry validates and builds a registry from pipelines in declaration
// order. Declaration order is preserved because it breaks classification ties.
func NewRegistry(pipelines []Pipeline) (*Registry, error) {
	if len(pipelines) == 0 {
		return nil, errors.ConfigError("no pipelines configured", nil)
	}

	r := &Registry{
		pipelines:   make([]Pipeline, len(pipelines)),
		byName:      make(map[string]*Pipeline, len(pipelines)),
		keywordSets: make(map[string]map[string]bool, len(pipelines)),
	}
	copy(r.pipelines, pipelines)

	for i := range r.pipelines {
		p := &r.pipelines[i]

		if p.Name == "" {
			return nil, errors.ConfigError(fmt.Sprintf("pipeline %d has no name", i), nil)
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, errors.ConfigError(fmt.Sprintf("duplicate pipeline name: %s", p.Name), nil)
		}
		if p.MinConfidence < 0 || p.MinConfidence > 1 {
			return nil, errors.ConfigError(
				fmt.Sprintf("pipeline %s: min_confidence %.2f out of range", p.Name, p.MinConfidence), nil)
		}

		for j := range p.Entries {
			e := &p.Entries[j]
			e.Pipeline = p.Name
			if e.ID == "" {
				if len(e.Patterns) > 0 {
					e.ID = hash.EntryID(p.Name, e.Patterns[0])
				} else if len(e.Keywords) > 0 {
					e.ID = hash.EntryID(p.Name, e.Keywords[0])
				} else {
					e.ID = hash.EntryID(p.Name, fmt.Sprintf("entry-%d", j))
				}
			}
			if e.Answer == "" && !e.Malformed() {
				return nil, errors.ConfigError(
					fmt.Sprintf("pipeline %s: entry %s has no answer", p.Name, e.ID), nil)
			}
		}

		r.byName[p.Name] = p
		r.keywordSets[p.Name] = buildKeywordSet(p)
	}

	return r, nil
}

func buildKeywordSet(p *Pipeline) map[string]bool {
	set := make(map[string]bool)
	for _, kw := range p.Triggers {
		set[kw] = true
	}
	for i := range p.Entries {
		for _, kw := range p.Entries[i].Keywords {
			set[kw] = true
		}
	}
	return set
}

// Get returns the pipeline with the given name, or nil.
func (r *Registry) Get(name string) *Pipeline {
	return r.byName[name]
}

// Names returns pipeline names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.pipelines))
	for i := range r.pipelines {
		names[i] = r.pipelines[i].Name
	}
	return names
}

// Pipelines returns all pipelines in declaration order.
func (r *Registry) Pipelines() []*Pipeline {
	out := make([]*Pipeline, len(r.pipelines))
	for i := range r.pipelines {
		out[i] = &r.pipelines[i]
	}
	return out
}

// KeywordSet returns the aggregate keyword set for a pipeline (triggers plus
// every entry keyword). The returned map must not be mutated.
func (r *Registry) KeywordSet(name string) map[string]bool {
	return r.keywordSets[name]
}

// EntryCount returns the total number of entries across pipelines.
func (r *Registry) EntryCount() int {
	n := 0
	for i := range r.pipelines {
		n += len(r.pipelines[i].Entries)
	}
	return n
}

// Store holds the registry visible to readers and supports atomic replacement.
// Reload builds a complete new registry before the swap; readers never observe
// a partially built one.
type Store struct {
	current atomic.Pointer[Registry]
}

// NewStore creates a store holding the given registry.
func NewStore(reg *Registry) *Store {
	s := &Store{}
	s.current.Store(reg)
	return s
}

// Registry returns the current registry.
func (s *Store) Registry() *Registry {
	return s.current.Load()
}

// Replace swaps in a new registry.
func (s *Store) Replace(reg *Registry) {
	s.current.Store(reg)
}
