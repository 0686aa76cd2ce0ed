package claims

// ClaimsFilter defines which claims should be passed through from a decoded payload
type ClaimsFilter interface {
	// Filter filters the claims, returning only those that should be passed through
	Filter(c Claims) Claims
}

// AllowListClaimsFilter only allows claim types in the allow list
type AllowListClaimsFilter struct {
	allowedTypes map[string]bool
}

// NewAllowListClaimsFilter creates a new allow list filter
func NewAllowListClaimsFilter(allowedTypes []string) *AllowListClaimsFilter {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, typ := range allowedTypes {
		allowed[typ] = true
	}
	return &AllowListClaimsFilter{
		allowedTypes: allowed,
	}
}

// Filter implements ClaimsFilter
func (f *AllowListClaimsFilter) Filter(c Claims) Claims {
	if c == nil {
		return nil
	}
	filtered := make(Claims, 0, len(c))
	for _, claim := range c {
		if f.allowedTypes[claim.Type] {
			filtered = append(filtered, claim)
		}
	}
	return filtered
}

// DenyListClaimsFilter blocks claim types in the deny list
type DenyListClaimsFilter struct {
	deniedTypes map[string]bool
}

// NewDenyListClaimsFilter creates a new deny list filter
func NewDenyListClaimsFilter(deniedTypes []string) *DenyListClaimsFilter {
	denied := make(map[string]bool, len(deniedTypes))
	for _, typ := range deniedTypes {
		denied[typ] = true
	}
	return &DenyListClaimsFilter{
		deniedTypes: denied,
	}
}

// Filter implements ClaimsFilter
func (f *DenyListClaimsFilter) Filter(c Claims) Claims {
	if c == nil {
		return nil
	}
	filtered := make(Claims, 0, len(c))
	for _, claim := range c {
		if !f.deniedTypes[claim.Type] {
			filtered = append(filtered, claim)
		}
	}
	return filtered
}

// PassthroughClaimsFilter passes all claims through
type PassthroughClaimsFilter struct{}

// Filter implements ClaimsFilter
func (f *PassthroughClaimsFilter) Filter(c Claims) Claims {
	return c.Copy()
}
