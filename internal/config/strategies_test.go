package config

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/strategy"
)

func TestNewRegistry_Order(t *testing.T) {
	registry, err := NewRegistry(AuthConfig{Endpoint: strategy.DefaultAuthEndpoint}, nil)
	require.NoError(t, err)

	var names []string
	for _, p := range registry.Providers() {
		names = append(names, p.ProviderName)
	}
	assert.Equal(t, []string{
		strategy.ProviderApplication,
		strategy.ProviderBearer,
		strategy.ProviderFacebook,
		strategy.ProviderMicrosoftAccount,
		strategy.ProviderTwitter,
		strategy.ProviderHeader,
		strategy.ProviderRemote,
	}, names)
}

func TestNewRegistry_ProviderOverrides(t *testing.T) {
	disabled := false
	registry, err := NewRegistry(AuthConfig{
		Endpoint: strategy.DefaultAuthEndpoint,
		Providers: []ProviderConfig{
			{Name: "Twitter", Enabled: &disabled},
			{Name: "header", RoleClaimType: "groups"},
		},
	}, nil)
	require.NoError(t, err)

	byName := make(map[string]identity.ProviderOptions)
	for _, p := range registry.Providers() {
		byName[p.ProviderName] = p
	}
	assert.False(t, byName[strategy.ProviderTwitter].Enabled)
	assert.True(t, byName[strategy.ProviderHeader].Enabled)
	assert.Equal(t, "groups", byName[strategy.ProviderHeader].RoleClaimType)
	assert.True(t, byName[strategy.ProviderBearer].Enabled)
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  AuthConfig
	}{
		{"unknown provider", AuthConfig{Endpoint: ".auth/me", Providers: []ProviderConfig{{Name: "google"}}}},
		{"provider without a name", AuthConfig{Endpoint: ".auth/me", Providers: []ProviderConfig{{}}}},
		{"duplicate provider", AuthConfig{Endpoint: ".auth/me", Providers: []ProviderConfig{{Name: "bearer"}, {Name: "Bearer"}}}},
		{"empty endpoint", AuthConfig{}},
		{"invalid filter", AuthConfig{Endpoint: ".auth/me", Filter: FilterConfig{Script: "provider_name =="}}},
		{"unknown claims filter", AuthConfig{Endpoint: ".auth/me", ClaimsFilter: ClaimsFilterConfig{Type: "regex"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.cfg, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, identity.ErrConfiguration)
		})
	}
}

func TestNewRegistry_ProviderFilter(t *testing.T) {
	registry, err := NewRegistry(AuthConfig{
		Endpoint: strategy.DefaultAuthEndpoint,
		Filter:   FilterConfig{Script: `provider_name != "header"`},
	}, nil)
	require.NoError(t, err)

	principal, err := strategy.EncodePrincipal("aad", claims.Claims{claims.New(claims.TypeName, "jane")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://app.example.com/api", nil)
	req.Header.Set(strategy.HeaderPrincipal, principal)

	outcome := engine.New(registry).Authenticate(req.Context(), req)
	assert.NotEqual(t, engine.StatusSuccess, outcome.Status, "the header strategy is filtered out")
	assert.NotEqual(t, strategy.ProviderHeader, outcome.Provider)
}

func TestNewClaimsFilter(t *testing.T) {
	raw := claims.Claims{
		claims.New(claims.TypeName, "jane"),
		claims.New("secret", "s3cr3t"),
	}

	allow, err := NewClaimsFilter(ClaimsFilterConfig{Type: "allow_list", ClaimTypes: []string{claims.TypeName}})
	require.NoError(t, err)
	assert.Len(t, allow.Filter(raw), 1)

	deny, err := NewClaimsFilter(ClaimsFilterConfig{Type: "deny_list", ClaimTypes: []string{"secret"}})
	require.NoError(t, err)
	filtered := deny.Filter(raw)
	require.Len(t, filtered, 1)
	assert.Equal(t, claims.TypeName, filtered[0].Type)

	pass, err := NewClaimsFilter(ClaimsFilterConfig{})
	require.NoError(t, err)
	assert.Len(t, pass.Filter(raw), 2)
}
