package identity

import (
	"github.com/project-kessel/edgeid/internal/claims"
)

// Builder assembles identities from raw claim records.
type Builder struct {
	filter   claims.ClaimsFilter
	scheme   string
	authType string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClaimsFilter restricts which raw claims reach the identity.
// The filter runs before normalization.
func WithClaimsFilter(f claims.ClaimsFilter) BuilderOption {
	return func(b *Builder) {
		b.filter = f
	}
}

// WithScheme overrides the authentication scheme tag.
func WithScheme(scheme string) BuilderOption {
	return func(b *Builder) {
		b.scheme = scheme
	}
}

// NewBuilder creates a builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		filter:   &claims.PassthroughClaimsFilter{},
		scheme:   DefaultScheme,
		authType: DefaultAuthenticationType,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build normalizes raw and returns the resulting identity.
//
// The identity always carries exactly one scp claim and one provider_name
// claim; providerName is used when raw has none. Name and role claim types
// come from opts and default to claims.TypeName and claims.TypeRole.
// Feeding an identity's claims back into Build yields the same claim set.
func (b *Builder) Build(raw []claims.Claim, providerName string, opts ProviderOptions) *Identity {
	nameType := opts.NameType()
	roleType := opts.RoleType()

	filtered := b.filter.Filter(claims.Claims(raw))
	normalized := claims.Normalize(filtered, roleType)
	final := claims.EnsureDefaults(normalized, providerName)

	return &Identity{
		claims:        final,
		nameClaimType: nameType,
		roleClaimType: roleType,
		scheme:        b.scheme,
		authType:      b.authType,
	}
}
