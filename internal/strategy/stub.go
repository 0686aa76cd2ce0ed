package strategy

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// StubStrategy is a configurable strategy for testing
type StubStrategy struct {
	name      string
	canHandle func(r *http.Request) bool
	raw       []claims.Claim
	err       error
	builder   *identity.Builder
	calls     atomic.Int32
}

// NewStubStrategy creates a stub that handles every request and resolves to
// an identity with the given name.
func NewStubStrategy(name string) *StubStrategy {
	return &StubStrategy{
		name:      name,
		canHandle: func(*http.Request) bool { return true },
		raw:       []claims.Claim{claims.New(claims.TypeName, name+"-user")},
		builder:   identity.NewBuilder(),
	}
}

// WithCanHandle sets the capability check
func (s *StubStrategy) WithCanHandle(fn func(r *http.Request) bool) *StubStrategy {
	s.canHandle = fn
	return s
}

// WithClaims sets the claims of the resolved identity
func (s *StubStrategy) WithClaims(c ...claims.Claim) *StubStrategy {
	s.raw = c
	return s
}

// WithError makes Resolve fail with err
func (s *StubStrategy) WithError(err error) *StubStrategy {
	s.err = err
	return s
}

// Calls returns how many times Resolve ran
func (s *StubStrategy) Calls() int {
	return int(s.calls.Load())
}

func (s *StubStrategy) Name() string {
	return s.name
}

func (s *StubStrategy) DefaultOptions() identity.ProviderOptions {
	return identity.ProviderOptions{ProviderName: s.name, Enabled: true}
}

func (s *StubStrategy) CanHandle(r *http.Request) bool {
	return s.canHandle(r)
}

func (s *StubStrategy) Resolve(ctx context.Context, r *http.Request, opts identity.ProviderOptions) (*identity.Identity, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.builder.Build(s.raw, s.name, opts), nil
}
