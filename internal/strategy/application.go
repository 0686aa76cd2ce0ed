package strategy

import (
	"context"
	"net/http"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// Application resolves service-to-service callers from an application
// bearer JWT. Roles come from the token's top-level roles array; the name is
// the application id.
//
// The token signature is NOT verified.
type Application struct {
	builder *identity.Builder
	rules   extractionRules
}

// NewApplication creates the application bearer strategy.
func NewApplication(builder *identity.Builder) *Application {
	return &Application{
		builder: builder,
		rules: extractionRules{
			nameKeys: []string{"appid", "azp"},
		},
	}
}

func (s *Application) Name() string {
	return ProviderApplication
}

func (s *Application) DefaultOptions() identity.ProviderOptions {
	return identity.ProviderOptions{
		ProviderName:  ProviderApplication,
		NameClaimType: claims.TypeSPN,
		Enabled:       true,
	}
}

// CanHandle matches bearer tokens with an application profile: either
// idtyp is "app", or an application id is present without any user-only
// claim (upn, scp).
func (s *Application) CanHandle(r *http.Request) bool {
	token, ok := BearerToken(r)
	if !ok {
		return false
	}

	payload, err := DecodePayload(token)
	if err != nil {
		return false
	}

	if idtyp, _ := firstString(payload, "idtyp"); idtyp == "app" {
		return true
	}

	_, hasAppID := firstString(payload, "appid", "azp")
	_, hasUser := firstString(payload, "upn", claims.TypeScope)
	return hasAppID && !hasUser
}

func (s *Application) Resolve(_ context.Context, r *http.Request, opts identity.ProviderOptions) (*identity.Identity, error) {
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
