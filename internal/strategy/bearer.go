package strategy

import (
	"context"
	"net/http"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// Bearer resolves user identities from an "Authorization: Bearer" JWT.
//
// The token signature is NOT verified.
type Bearer struct {
	builder *identity.Builder
	rules   extractionRules
}

// NewBearer creates the user bearer strategy.
func NewBearer(builder *identity.Builder) *Bearer {
	return &Bearer{
		builder: builder,
		rules: extractionRules{
			nameKeys:  []string{"upn", "appid", "sub"},
			allClaims: true,
		},
	}
}

func (s *Bearer) Name() string {
	return ProviderBearer
}

func (s *Bearer) DefaultOptions() identity.ProviderOptions {
	return identity.ProviderOptions{
		ProviderName:  ProviderBearer,
		NameClaimType: claims.TypeSPN,
		RoleClaimType: claims.TypeRoles,
		Enabled:       true,
	}
}

func (s *Bearer) CanHandle(r *http.Request) bool {
	_, ok := BearerToken(r)
	return ok
}

// Resolve names the identity after upn, appid or sub (first present) and
// takes the provider from idp, falling back to iss.
func (s *Bearer) Resolve(_ context.Context, r *http.Request, opts identity.ProviderOptions) (*identity.Identity, error) {
	token, _ := BearerToken(r)

	payload, err := DecodePayload(token)
	if err != nil {
		return nil, err
	}

	raw, provider, err := s.rules.extract(payload, opts)
	if err != nil {
		return nil, err
	}

	return s.builder.Build(raw, provider, opts), nil
}
