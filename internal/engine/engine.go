// Package engine selects a strategy for each request, runs it, and merges
// externally sourced roles into the result.
package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/request"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// RoleAugmenter merges extra roles into a resolved identity.
type RoleAugmenter interface {
	Augment(ctx context.Context, id *identity.Identity) (*identity.Identity, error)
}

// Engine resolves caller identities.
type Engine struct {
	registry  *Registry
	augmenter RoleAugmenter
	observer  ResolutionObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithRoleAugmenter merges roles into every resolved identity.
func WithRoleAugmenter(augmenter RoleAugmenter) Option {
	return func(e *Engine) {
		e.augmenter = augmenter
	}
}

// WithObserver sets the resolution observer.
func WithObserver(observer ResolutionObserver) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// New creates an engine over registry.
func New(registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		observer: NoOpObserver(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's strategy registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Authenticate resolves the caller of r.
//
// Requests whose context already carries an authenticated identity yield
// NoResult without running any strategy. Decode failures become Fail
// outcomes and are never returned as errors. A role augmentation failure
// does not fail the resolution; the identity is returned as decoded.
func (e *Engine) Authenticate(ctx context.Context, r *http.Request) Outcome {
	attrs := request.FromHTTPRequest(r)
	resolutionID := uuid.NewString()

	ctx, probe := e.observer.ResolutionStarted(ctx, resolutionID, attrs)
	defer probe.End()

	if existing, ok := identity.FromContext(ctx); ok && existing.IsAuthenticated() {
		probe.AlreadyAuthenticated()
		return Outcome{Status: StatusNoResult, ID: resolutionID}
	}

	sel, ok := e.registry.Select(r, attrs, probe)
	if !ok {
		probe.NoStrategyMatched()
		return Outcome{Status: StatusNoResult, ID: resolutionID}
	}

	provider := sel.Options.ProviderName
	probe.StrategySelected(provider, sel.Fallback)

	id, err := sel.Strategy.Resolve(ctx, r, sel.Options)
	if err != nil {
		reason := strategy.ReasonOf(err)
		probe.ResolutionFailed(provider, reason, err)
		return Outcome{
			Status:   StatusFail,
			ID:       resolutionID,
			Provider: provider,
			Reason:   reason,
			Err:      err,
		}
	}

	if e.augmenter != nil {
		augmented, err := e.augmenter.Augment(ctx, id)
		if err != nil {
			probe.RoleAugmentationFailed(id.Name(), err)
		} else {
			id = augmented
		}
	}

	probe.ResolutionSucceeded(provider, id)
	return Outcome{
		Status:   StatusSuccess,
		ID:       resolutionID,
		Identity: id,
		Provider: provider,
	}
}
