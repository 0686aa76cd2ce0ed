// Package identity defines the resolved caller and the builder that produces it.
package identity

import (
	"context"

	"github.com/project-kessel/edgeid/internal/claims"
)

const (
	// DefaultScheme is the authentication scheme tag attached to every identity.
	DefaultScheme = "EasyAuth"

	// DefaultDisplayName is the human-readable name of DefaultScheme.
	DefaultDisplayName = "Azure Easy Auth"

	// DefaultAuthenticationType labels identities asserted by a federated
	// upstream proxy.
	DefaultAuthenticationType = "AuthenticationTypes.Federation"
)

// Identity is a resolved caller. It is immutable after construction: every
// accessor returns copies, and WithClaims returns a new value.
type Identity struct {
	claims        claims.Claims
	nameClaimType string
	roleClaimType string
	scheme        string
	authType      string
}

// Claims returns a copy of the identity's claims in order.
func (i *Identity) Claims() claims.Claims {
	return i.claims.Copy()
}

// NameClaimType returns the claim type that backs Name.
func (i *Identity) NameClaimType() string {
	return i.nameClaimType
}

// RoleClaimType returns the claim type that backs role lookups.
func (i *Identity) RoleClaimType() string {
	return i.roleClaimType
}

// AuthenticationScheme returns the scheme tag.
func (i *Identity) AuthenticationScheme() string {
	return i.scheme
}

// AuthenticationType returns the authentication type label.
func (i *Identity) AuthenticationType() string {
	return i.authType
}

// Name returns the value of the first name claim, or "".
func (i *Identity) Name() string {
	return i.claims.GetString(i.nameClaimType)
}

// Roles returns the values of all role claims in order.
func (i *Identity) Roles() []string {
	return i.claims.All(i.roleClaimType)
}

// HasRole reports whether the identity carries the given role.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// FindFirst returns the first value of the given claim type.
func (i *Identity) FindFirst(typ string) (string, bool) {
	return i.claims.First(typ)
}

// FindAll returns every value of the given claim type.
func (i *Identity) FindAll(typ string) []string {
	return i.claims.All(typ)
}

// ProviderName returns the provider_name claim.
func (i *Identity) ProviderName() string {
	return i.claims.GetString(claims.TypeProviderName)
}

// IsAuthenticated reports whether the identity carries an authentication type.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.authType != ""
}

// WithClaims returns a new identity with extra appended to the claim list.
// The receiver is not modified.
func (i *Identity) WithClaims(extra ...claims.Claim) *Identity {
	merged := make(claims.Claims, 0, len(i.claims)+len(extra))
	merged = append(merged, i.claims...)
	merged = append(merged, extra...)

	return &Identity{
		claims:        merged,
		nameClaimType: i.nameClaimType,
		roleClaimType: i.roleClaimType,
		scheme:        i.scheme,
		authType:      i.authType,
	}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
