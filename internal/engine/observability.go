package engine

import (
	"context"

	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/request"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// ResolutionObserver creates request-scoped observability probes for
// identity resolution.
//
// Following the pattern from https://martinfowler.com/articles/domain-oriented-observability.html#IncludingExecutionContext,
// the observer captures execution context at the start of an operation and
// returns a request-scoped probe that doesn't require context to be passed to
// each method.
type ResolutionObserver interface {
	// ResolutionStarted creates a new probe for one resolution attempt.
	// Returns an instrumented context and a probe scoped to this request.
	ResolutionStarted(ctx context.Context, resolutionID string, attrs *request.RequestAttributes) (context.Context, ResolutionProbe)
}

// ResolutionProbe provides request-scoped observability for a single
// resolution.
//
// The probe lifecycle:
//  1. Created by ResolutionObserver.ResolutionStarted()
//  2. Events reported as the engine selects and runs a strategy
//  3. Terminated with End() - typically deferred
type ResolutionProbe interface {
	// AlreadyAuthenticated is called when the request carried an identity.
	AlreadyAuthenticated()

	// StrategyFiltered is called when the provider filter rejects a
	// candidate. err is set when the filter could not be evaluated.
	StrategyFiltered(provider string, err error)

	// StrategySelected is called with the strategy that will resolve the request.
	StrategySelected(provider string, fallback bool)

	// NoStrategyMatched is called when no strategy applies.
	NoStrategyMatched()

	// ResolutionSucceeded is called with the resolved identity.
	ResolutionSucceeded(provider string, id *identity.Identity)

	// ResolutionFailed is called when the selected strategy fails.
	ResolutionFailed(provider string, reason strategy.FailureReason, err error)

	// RoleAugmentationFailed is called when extra roles could not be merged.
	// Resolution still succeeds with the unaugmented identity.
	RoleAugmentationFailed(name string, err error)

	// End terminates the observation. Should be deferred to ensure cleanup.
	End()
}

// compositeObserver delegates to multiple observers in order.
// Useful for combining logging and metrics.
type compositeObserver struct {
	observers []ResolutionObserver
}

// NewCompositeObserver creates an observer that delegates to multiple observers.
// Observers are called in the order provided.
func NewCompositeObserver(observers ...ResolutionObserver) ResolutionObserver {
	return &compositeObserver{observers: observers}
}

func (c *compositeObserver) ResolutionStarted(
	ctx context.Context,
	resolutionID string,
	attrs *request.RequestAttributes,
) (context.Context, ResolutionProbe) {
	probes := make([]ResolutionProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.ResolutionStarted(ctx, resolutionID, attrs)
	}
	return ctx, &compositeResolutionProbe{probes: probes}
}

// compositeResolutionProbe delegates to multiple probes in order.
type compositeResolutionProbe struct {
	probes []ResolutionProbe
}

func (c *compositeResolutionProbe) AlreadyAuthenticated() {
	for _, probe := range c.probes {
		probe.AlreadyAuthenticated()
	}
}

func (c *compositeResolutionProbe) StrategyFiltered(provider string, err error) {
	for _, probe := range c.probes {
		probe.StrategyFiltered(provider, err)
	}
}

func (c *compositeResolutionProbe) StrategySelected(provider string, fallback bool) {
	for _, probe := range c.probes {
		probe.StrategySelected(provider, fallback)
	}
}

func (c *compositeResolutionProbe) NoStrategyMatched() {
	for _, probe := range c.probes {
		probe.NoStrategyMatched()
	}
}

func (c *compositeResolutionProbe) ResolutionSucceeded(provider string, id *identity.Identity) {
	for _, probe := range c.probes {
		probe.ResolutionSucceeded(provider, id)
	}
}

func (c *compositeResolutionProbe) ResolutionFailed(provider string, reason strategy.FailureReason, err error) {
	for _, probe := range c.probes {
		probe.ResolutionFailed(provider, reason, err)
	}
}

func (c *compositeResolutionProbe) RoleAugmentationFailed(name string, err error) {
	for _, probe := range c.probes {
		probe.RoleAugmentationFailed(name, err)
	}
}

func (c *compositeResolutionProbe) End() {
	for _, probe := range c.probes {
		probe.End()
	}
}

// NoOpResolutionProbe is an exported null object implementation of ResolutionProbe.
// Implementations can embed this to get default no-op behavior, allowing new methods
// to be added to the interface without breaking existing implementations.
type NoOpResolutionProbe struct{}

func (n *NoOpResolutionProbe) AlreadyAuthenticated()                                      {}
func (n *NoOpResolutionProbe) StrategyFiltered(provider string, err error)                {}
func (n *NoOpResolutionProbe) StrategySelected(provider string, fallback bool)            {}
func (n *NoOpResolutionProbe) NoStrategyMatched()                                         {}
func (n *NoOpResolutionProbe) ResolutionSucceeded(provider string, id *identity.Identity) {}
func (n *NoOpResolutionProbe) ResolutionFailed(provider string, reason strategy.FailureReason, err error) {
}
func (n *NoOpResolutionProbe) RoleAugmentationFailed(name string, err error) {}
func (n *NoOpResolutionProbe) End()                                          {}

// NoOpResolutionObserver implements ResolutionObserver with no-op behavior.
type NoOpResolutionObserver struct{}

// NoOpObserver returns an observer that does nothing.
// Use this as a default when no observability is needed.
func NoOpObserver() ResolutionObserver {
	return &NoOpResolutionObserver{}
}

func (n *NoOpResolutionObserver) ResolutionStarted(ctx context.Context, resolutionID string, attrs *request.RequestAttributes) (context.Context, ResolutionProbe) {
	return ctx, &NoOpResolutionProbe{}
}
