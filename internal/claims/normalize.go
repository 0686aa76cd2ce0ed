package claims

// Normalize converts raw claim records into canonical claims.
//
// Auth-method markers are split on commas into one TypeAuthentication claim
// per method. Raw "roles" claims (and claims already of roleType) are split
// into one roleType claim per role; duplicate role values are dropped.
// Every other claim is kept verbatim. An empty roleType means TypeRole.
func Normalize(raw []Claim, roleType string) Claims {
	if roleType == "" {
		roleType = TypeRole
	}

	out := make(Claims, 0, len(raw))
	seenRoles := make(map[string]bool)

	for _, claim := range raw {
		switch {
		case IsAuthMethod(claim.Type):
			for _, method := range SplitValues(claim.Value) {
				out = append(out, New(TypeAuthentication, method))
			}
		case claim.Type == TypeRoles || claim.Type == roleType:
			for _, role := range SplitValues(claim.Value) {
				if seenRoles[role] {
					continue
				}
				seenRoles[role] = true
				out = append(out, New(roleType, role))
			}
		default:
			out = append(out, claim)
		}
	}

	return out
}

// EnsureDefaults guarantees exactly one TypeScope and one TypeProviderName
// claim. Existing values win; later duplicates are dropped. Missing claims
// are appended with DefaultScope and providerName respectively.
func EnsureDefaults(c Claims, providerName string) Claims {
	out := make(Claims, 0, len(c)+2)
	var hasScope, hasProvider bool

	for _, claim := range c {
		switch claim.Type {
		case TypeScope:
			if hasScope {
				continue
			}
			hasScope = true
		case TypeProviderName:
			if hasProvider {
				continue
			}
			hasProvider = true
		}
		out = append(out, claim)
	}

	if !hasScope {
		out = append(out, New(TypeScope, DefaultScope))
	}
	if !hasProvider {
		out = append(out, New(TypeProviderName, providerName))
	}

	return out
}
