package strategy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// Principal is the decoded X-MS-CLIENT-PRINCIPAL object.
type Principal struct {
	AuthType string         `json:"auth_typ"`
	Claims   []claims.Claim `json:"claims"`
	NameType string         `json:"name_typ,omitempty"`
	RoleType string         `json:"role_typ,omitempty"`
}

// Header resolves identities from the inline principal header.
//
// The generic strategy handles every principal header not accompanied by a
// bearer token. An identity-provider variant additionally requires the IDP
// header to name its provider and that provider's access token header to be
// set.
type Header struct {
	builder     *identity.Builder
	name        string
	idp         string
	tokenHeader string
	defaults    identity.ProviderOptions
}

// NewHeader creates the generic inline principal strategy.
func NewHeader(builder *identity.Builder) *Header {
	return &Header{
		builder: builder,
		name:    ProviderHeader,
		defaults: identity.ProviderOptions{
			ProviderName:  ProviderHeader,
			NameClaimType: claims.TypeEmail,
			Enabled:       true,
		},
	}
}

// NewFacebook creates the principal strategy for facebook logins.
func NewFacebook(builder *identity.Builder) *Header {
	return newIdentityProviderHeader(builder, ProviderFacebook, TokenFacebookAccess)
}

// NewMicrosoftAccount creates the principal strategy for Microsoft account logins.
func NewMicrosoftAccount(builder *identity.Builder) *Header {
	return newIdentityProviderHeader(builder, ProviderMicrosoftAccount, TokenMicrosoftAccess)
}

// NewTwitter creates the principal strategy for twitter logins.
func NewTwitter(builder *identity.Builder) *Header {
	return newIdentityProviderHeader(builder, ProviderTwitter, TokenTwitterAccess)
}

func newIdentityProviderHeader(builder *identity.Builder, idp, tokenHeader string) *Header {
	return &Header{
		builder:     builder,
		name:        idp,
		idp:         idp,
		tokenHeader: tokenHeader,
		defaults: identity.ProviderOptions{
			ProviderName:  idp,
			NameClaimType: "name",
			RoleClaimType: claims.TypeRole,
			Enabled:       true,
		},
	}
}

func (s *Header) Name() string {
	return s.name
}

func (s *Header) DefaultOptions() identity.ProviderOptions {
	return s.defaults
}

func (s *Header) CanHandle(r *http.Request) bool {
	if !headerSet(r, HeaderPrincipal) {
		return false
	}
	if _, ok := BearerToken(r); ok {
		return false
	}
	if s.idp == "" {
		return true
	}
	return strings.EqualFold(r.Header.Get(HeaderPrincipalIDP), s.idp) && headerSet(r, s.tokenHeader)
}

// Resolve decodes the principal header. The provider name comes from the IDP
// header, then from the principal's auth_typ.
func (s *Header) Resolve(_ context.Context, r *http.Request, opts identity.ProviderOptions) (*identity.Identity, error) {
	p, err := DecodePrincipal(r.Header.Get(HeaderPrincipal))
	if err != nil {
		return nil, err
	}

	provider := r.Header.Get(HeaderPrincipalIDP)
	if provider == "" {
		provider = p.AuthType
	}
	if provider == "" {
		provider = opts.ProviderName
	}

	return s.builder.Build(p.Claims, provider, opts), nil
}

// DecodePrincipal decodes a base64 principal header value.
func DecodePrincipal(value string) (*Principal, error) {
	value = strings.TrimSpace(value)

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		// Some proxies strip the padding.
		var rawErr error
		if raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "=")); rawErr != nil {
			return nil, fmt.Errorf("%w: principal header base64: %v", ErrDecode, err)
		}
	}

	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: principal header json: %v", ErrDecode, err)
	}
	if p.Claims == nil {
		return nil, fmt.Errorf("%w: principal header has no claims", ErrDecode)
	}

	return &p, nil
}

// EncodePrincipal renders c in the principal header format.
func EncodePrincipal(authType string, c claims.Claims) (string, error) {
	if c == nil {
		c = claims.Claims{}
	}
	b, err := json.Marshal(Principal{AuthType: authType, Claims: c})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
