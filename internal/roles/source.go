// Package roles looks up application roles for a resolved caller and merges
// them into the caller's identity.
//
// A Source answers "which roles does this name hold". Sources are usually
// slow (a database, an HTTP service, a script), so they are wrapped in a
// Cache that remembers answers per name and collapses concurrent lookups for
// the same name into one fetch.
package roles

import (
	"context"
	"errors"
	"strings"
)

// ErrSource is wrapped by every error a role source returns.
var ErrSource = errors.New("role source failed")

// Source looks up the roles held by a caller name.
// An unknown name is not an error; it holds no roles.
type Source interface {
	Roles(ctx context.Context, name string) ([]string, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context, name string) ([]string, error)

func (f SourceFunc) Roles(ctx context.Context, name string) ([]string, error) {
	return f(ctx, name)
}

// clean trims role names and drops blanks and duplicates, keeping order.
func clean(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
