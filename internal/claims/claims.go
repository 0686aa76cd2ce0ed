// Package claims defines the typed key/value facts that describe a caller.
//
// Claims are kept as an ordered list rather than a map: a claim type may
// repeat (one role claim per role) and the order in which the upstream proxy
// reported them is preserved.
package claims

import "strings"

// Well-known claim types.
//
// The URI forms match the claim types the hosting platform emits, so claim
// sets decoded from different signals line up with each other.
const (
	TypeName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	TypeRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	TypeEmail          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	TypeSPN            = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/spn"
	TypeNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	TypeAuthentication = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authentication"

	// TypeAuthMethod is the auth-method marker emitted by the platform's
	// principal header. Its value is a comma-separated list.
	TypeAuthMethod = "http://schemas.microsoft.com/claims/authnmethodsreferences"

	// TypeAMR is the JWT form of the auth-method marker.
	TypeAMR = "amr"

	// TypeRoles is the raw multi-valued role claim found in tokens and
	// principal payloads.
	TypeRoles = "roles"

	TypeScope        = "scp"
	TypeProviderName = "provider_name"
	TypeSubject      = "sub"
)

// DefaultScope is injected when a payload carries no scope claim. The
// platform only ever reports delegated user access through this value.
const DefaultScope = "user_impersonation"

// Claim is a single typed fact about a caller.
// The JSON form matches the platform payloads ({"typ": ..., "val": ...}).
type Claim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// New returns a claim with the given type and value.
func New(typ, value string) Claim {
	return Claim{Type: typ, Value: value}
}

// Claims is an ordered claim list.
type Claims []Claim

// Has reports whether at least one claim of the given type exists.
func (c Claims) Has(typ string) bool {
	for _, claim := range c {
		if claim.Type == typ {
			return true
		}
	}
	return false
}

// First returns the value of the first claim of the given type.
func (c Claims) First(typ string) (string, bool) {
	for _, claim := range c {
		if claim.Type == typ {
			return claim.Value, true
		}
	}
	return "", false
}

// GetString returns the first value of the given type or the empty string.
func (c Claims) GetString(typ string) string {
	v, _ := c.First(typ)
	return v
}

// All returns every value of the given type, in order.
func (c Claims) All(typ string) []string {
	var values []string
	for _, claim := range c {
		if claim.Type == typ {
			values = append(values, claim.Value)
		}
	}
	return values
}

// Count returns how many claims of the given type exist.
func (c Claims) Count(typ string) int {
	n := 0
	for _, claim := range c {
		if claim.Type == typ {
			n++
		}
	}
	return n
}

// Copy returns a copy that shares no backing array with c.
func (c Claims) Copy() Claims {
	if c == nil {
		return nil
	}
	out := make(Claims, len(c))
	copy(out, c)
	return out
}

// IsAuthMethod reports whether typ is one of the auth-method marker types.
func IsAuthMethod(typ string) bool {
	return typ == TypeAuthMethod || typ == TypeAMR
}

// SplitValues splits a comma-separated claim value into trimmed, non-empty
// tokens.
func SplitValues(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
