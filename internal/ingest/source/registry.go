package source

import (
	"github.com/rotisserie/eris"

	"github.com/macromap/econsync/internal/config"
)

// Registry maps provider names to their adapters.
type Registry struct {
	sources map[string]Source
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with all provider adapters.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{}

	r.Register(&WorldBank{BaseURL: cfg.Sources.WorldBankBaseURL})
	r.Register(&ExchangeRate{BaseURL: cfg.Sources.RatesBaseURL})

	return r
}

// Register adds a source to the registry. The zero Registry is usable.
func (r *Registry) Register(s Source) {
	if r.sources == nil {
		r.sources = make(map[string]Source)
	}
	name := s.Name()
	r.sources[name] = s
	r.order = append(r.order, name)
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, eris.Errorf("source: unknown provider %q", name)
	}
	return s, nil
}

// AllNames returns all registered provider names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
