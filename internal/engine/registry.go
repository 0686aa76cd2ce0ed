package engine

import (
	"fmt"
	"net/http"

	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/request"
	"github.com/project-kessel/edgeid/internal/strategy"
)

type registration struct {
	strategy strategy.Strategy
	options  identity.ProviderOptions
}

// Selection is the strategy chosen for a request.
type Selection struct {
	Strategy strategy.Strategy
	Options  identity.ProviderOptions
	Fallback bool
}

// Registry holds the ordered strategy list and the optional fallback.
//
// Strategies are registered at startup. Registration is not safe for
// concurrent use; selection is.
type Registry struct {
	entries  []registration
	fallback *registration
	names    map[string]bool
	filter   ProviderFilter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithProviderFilter sets a filter consulted for every candidate strategy.
func WithProviderFilter(filter ProviderFilter) RegistryOption {
	return func(r *Registry) {
		r.filter = filter
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends s to the selection order. override is merged onto the
// strategy's default options; nil keeps the defaults. A provider name may
// only be registered once.
func (r *Registry) Register(s strategy.Strategy, override *identity.ProviderOptions) error {
	reg, err := r.prepare(s, override)
	if err != nil {
		return err
	}
	r.entries = append(r.entries, reg)
	return nil
}

// SetFallback sets the strategy used when no registered strategy applies.
func (r *Registry) SetFallback(s strategy.Strategy, override *identity.ProviderOptions) error {
	if r.fallback != nil {
		return fmt.Errorf("%w: fallback already set to %q", identity.ErrConfiguration, r.fallback.strategy.Name())
	}
	reg, err := r.prepare(s, override)
	if err != nil {
		return err
	}
	r.fallback = &reg
	return nil
}

func (r *Registry) prepare(s strategy.Strategy, override *identity.ProviderOptions) (registration, error) {
	name := s.Name()
	if r.names[name] {
		return registration{}, fmt.Errorf("%w: provider %q registered twice", identity.ErrConfiguration, name)
	}

	options, err := s.DefaultOptions().Merge(override)
	if err != nil {
		return registration{}, err
	}

	r.names[name] = true
	return registration{strategy: s, options: options}, nil
}

// Providers returns the options of every registered strategy in selection
// order, the fallback last.
func (r *Registry) Providers() []identity.ProviderOptions {
	out := make([]identity.ProviderOptions, 0, len(r.entries)+1)
	for _, reg := range r.entries {
		out = append(out, reg.options)
	}
	if r.fallback != nil {
		out = append(out, r.fallback.options)
	}
	return out
}

// Select returns the first enabled strategy, in registration order, whose
// CanHandle matches and that the provider filter allows. When none matches
// the fallback is tried under the same conditions; the fallback's own
// CanHandle excludes requests for its auth document.
func (r *Registry) Select(req *http.Request, attrs *request.RequestAttributes, probe ResolutionProbe) (Selection, bool) {
	for _, reg := range r.entries {
		if r.eligible(reg, req, attrs, probe) {
			return Selection{Strategy: reg.strategy, Options: reg.options}, true
		}
	}

	if r.fallback != nil && r.eligible(*r.fallback, req, attrs, probe) {
		return Selection{Strategy: r.fallback.strategy, Options: r.fallback.options, Fallback: true}, true
	}

	return Selection{}, false
}

func (r *Registry) eligible(reg registration, req *http.Request, attrs *request.RequestAttributes, probe ResolutionProbe) bool {
	if !reg.options.Enabled || !reg.strategy.CanHandle(req) {
		return false
	}
	if r.filter == nil {
		return true
	}

	allowed, err := r.filter.Allow(reg.options.ProviderName, attrs)
	if err != nil || !allowed {
		probe.StrategyFiltered(reg.options.ProviderName, err)
		return false
	}
	return true
}
