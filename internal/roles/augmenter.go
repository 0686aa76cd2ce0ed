package roles

import (
	"context"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// Augmenter merges roles from a Source into resolved identities.
type Augmenter struct {
	source Source
}

// NewAugmenter creates an augmenter over source, usually a Cache.
func NewAugmenter(source Source) *Augmenter {
	return &Augmenter{source: source}
}

// Augment returns id with the source's roles for id's name added as role
// claims. Roles id already holds are not repeated. Identities without a
// name are returned unchanged.
func (a *Augmenter) Augment(ctx context.Context, id *identity.Identity) (*identity.Identity, error) {
	name := id.Name()
	if name == "" {
		return id, nil
	}

	fetched, err := a.source.Roles(ctx, name)
	if err != nil {
		return nil, err
	}

	held := make(map[string]bool)
	for _, r := range id.Roles() {
		held[r] = true
	}

	roleType := id.RoleClaimType()
	var added []claims.Claim
	for _, role := range fetched {
		if role == "" || held[role] {
			continue
		}
		held[role] = true
		added = append(added, claims.New(roleType, role))
	}
	if len(added) == 0 {
		return id, nil
	}
	return id.WithClaims(added...), nil
}
