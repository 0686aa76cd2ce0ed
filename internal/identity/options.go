package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/project-kessel/edgeid/internal/claims"
)

// ErrConfiguration is returned for setup mistakes: merging options of
// different providers, a missing endpoint, an unknown provider. It is fatal
// at startup and never produced while resolving a request.
var ErrConfiguration = errors.New("configuration error")

// ProviderOptions configures one strategy.
type ProviderOptions struct {
	// ProviderName is the identity key of the strategy. It never changes.
	ProviderName string `json:"provider_name" koanf:"name"`

	// NameClaimType is the claim type backing Identity.Name.
	NameClaimType string `json:"name_claim_type,omitempty" koanf:"name_claim_type"`

	// RoleClaimType is the claim type backing role lookups.
	RoleClaimType string `json:"role_claim_type,omitempty" koanf:"role_claim_type"`

	// Enabled gates the strategy in the selector.
	Enabled bool `json:"enabled" koanf:"enabled"`
}

// Merge returns a copy of o with override applied. A nil override returns o
// unchanged. Blank claim types in override do not replace the current ones;
// Enabled is always taken from override.
//
// Merging options of a different provider is a configuration error.
func (o ProviderOptions) Merge(override *ProviderOptions) (ProviderOptions, error) {
	if override == nil {
		return o, nil
	}

	if override.ProviderName != o.ProviderName {
		return o, fmt.Errorf("%w: cannot merge options of provider %q into provider %q",
			ErrConfiguration, override.ProviderName, o.ProviderName)
	}

	merged := o
	if strings.TrimSpace(override.NameClaimType) != "" {
		merged.NameClaimType = override.NameClaimType
	}
	if strings.TrimSpace(override.RoleClaimType) != "" {
		merged.RoleClaimType = override.RoleClaimType
	}
	merged.Enabled = override.Enabled

	return merged, nil
}

// NameType returns NameClaimType, defaulting to claims.TypeName.
func (o ProviderOptions) NameType() string {
	if o.NameClaimType == "" {
		return claims.TypeName
	}
	return o.NameClaimType
}

// RoleType returns RoleClaimType, defaulting to claims.TypeRole.
func (o ProviderOptions) RoleType() string {
	if o.RoleClaimType == "" {
		return claims.TypeRole
	}
	return o.RoleClaimType
}
