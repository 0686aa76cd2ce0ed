// Package strategy decodes the identity signals an authentication proxy
// attaches to a request.
//
// Strategies never verify credentials. The upstream proxy has already
// authenticated the caller; a strategy only interprets what it was handed.
// In particular, bearer tokens are decoded WITHOUT signature verification.
// Deployments must make sure the proxy is the only way in.
package strategy

import (
	"context"
	"net/http"
	"strings"

	"github.com/project-kessel/edgeid/internal/identity"
)

// Inbound header names.
const (
	HeaderAuthorization = "Authorization"

	// HeaderPrincipal carries the base64 JSON principal object.
	HeaderPrincipal = "X-MS-CLIENT-PRINCIPAL"

	// HeaderPrincipalIDP names the identity provider that authenticated the caller.
	HeaderPrincipalIDP = "X-MS-CLIENT-PRINCIPAL-IDP"

	HeaderPrincipalName = "X-MS-CLIENT-PRINCIPAL-NAME"
	HeaderPrincipalID   = "X-MS-CLIENT-PRINCIPAL-ID"

	// ForwardHeaderPrefix marks headers that are forwarded verbatim to the
	// remote auth document endpoint.
	ForwardHeaderPrefix = "X-ZUMO-"

	// DefaultAuthEndpoint is the platform's auth document path.
	DefaultAuthEndpoint = ".auth/me"
)

// Token store headers injected by the proxy.
const (
	TokenAADID                  = "X-MS-TOKEN-AAD-ID-TOKEN"
	TokenAADAccess              = "X-MS-TOKEN-AAD-ACCESS-TOKEN"
	TokenAADExpiresOn           = "X-MS-TOKEN-AAD-EXPIRES-ON"
	TokenAADRefresh             = "X-MS-TOKEN-AAD-REFRESH-TOKEN"
	TokenFacebookAccess         = "X-MS-TOKEN-FACEBOOK-ACCESS-TOKEN"
	TokenFacebookExpiresOn      = "X-MS-TOKEN-FACEBOOK-EXPIRES-ON"
	TokenGoogleID               = "X-MS-TOKEN-GOOGLE-ID-TOKEN"
	TokenGoogleAccess           = "X-MS-TOKEN-GOOGLE-ACCESS-TOKEN"
	TokenGoogleExpiresOn        = "X-MS-TOKEN-GOOGLE-EXPIRES-ON"
	TokenGoogleRefresh          = "X-MS-TOKEN-GOOGLE-REFRESH-TOKEN"
	TokenMicrosoftAccess        = "X-MS-TOKEN-MICROSOFTACCOUNT-ACCESS-TOKEN"
	TokenMicrosoftExpiresOn     = "X-MS-TOKEN-MICROSOFTACCOUNT-EXPIRES-ON"
	TokenMicrosoftAuthorization = "X-MS-TOKEN-MICROSOFTACCOUNT-AUTHENTICATION-TOKEN"
	TokenMicrosoftRefresh       = "X-MS-TOKEN-MICROSOFTACCOUNT-REFRESH-TOKEN"
	TokenTwitterAccess          = "X-MS-TOKEN-TWITTER-ACCESS-TOKEN"
	TokenTwitterAccessSecret    = "X-MS-TOKEN-TWITTER-ACCESS-TOKEN-SECRET"
)

// Provider names of the built-in strategies.
const (
	ProviderApplication      = "application"
	ProviderBearer           = "bearer"
	ProviderHeader           = "header"
	ProviderFacebook         = "facebook"
	ProviderMicrosoftAccount = "microsoftaccount"
	ProviderTwitter          = "twitter"
	ProviderRemote           = "remote"
)

// Strategy decodes one kind of identity signal.
type Strategy interface {
	// Name returns the provider name the strategy is registered under.
	Name() string

	// DefaultOptions returns the strategy's built-in options. Configured
	// options are merged on top of these.
	DefaultOptions() identity.ProviderOptions

	// CanHandle reports whether the signal this strategy decodes is present.
	// It must be cheap and free of side effects.
	CanHandle(r *http.Request) bool

	// Resolve decodes the signal into an identity. Errors wrap one of the
	// sentinel errors of this package; use ReasonOf to classify them.
	Resolve(ctx context.Context, r *http.Request, opts identity.ProviderOptions) (*identity.Identity, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if len(auth) < len("Bearer ") || !strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[len("Bearer "):])
	return token, token != ""
}

func headerSet(r *http.Request, name string) bool {
	return r.Header.Get(name) != ""
}
