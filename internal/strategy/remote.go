package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/request"
)

const defaultMaxDocumentBytes = 1 << 20

// authDocument is one entry of the auth document array.
type authDocument struct {
	ProviderName string         `json:"provider_name"`
	UserID       string         `json:"user_id"`
	UserClaims   []claims.Claim `json:"user_claims"`
}

// Remote resolves identities by fetching the proxy's auth document.
//
// It is the fallback strategy: it applies when the request carries no inline
// signal. Requests for the auth document path itself are never handled, so
// the fetch cannot recurse into this process.
type Remote struct {
	builder       *identity.Builder
	endpoint      string
	transport     http.RoundTripper
	forwardPrefix string
	timeout       time.Duration
	maxBytes      int64
}

// RemoteOption configures a Remote strategy.
type RemoteOption func(*Remote)

// WithTransport sets the transport used for the fetch.
// Defaults to http.DefaultTransport.
func WithTransport(transport http.RoundTripper) RemoteOption {
	return func(s *Remote) {
		s.transport = transport
	}
}

// WithForwardPrefix overrides the prefix of forwarded headers.
func WithForwardPrefix(prefix string) RemoteOption {
	return func(s *Remote) {
		s.forwardPrefix = prefix
	}
}

// WithTimeout bounds each fetch. Zero leaves only the request's own deadline.
func WithTimeout(d time.Duration) RemoteOption {
	return func(s *Remote) {
		s.timeout = d
	}
}

// WithMaxDocumentBytes limits the size of the auth document.
func WithMaxDocumentBytes(n int64) RemoteOption {
	return func(s *Remote) {
		s.maxBytes = n
	}
}

// NewRemote creates the remote document strategy. endpoint is either an
// absolute URL or a path relative to the inbound request's scheme and host.
// An empty endpoint is a configuration error.
func NewRemote(builder *identity.Builder, endpoint string, opts ...RemoteOption) (*Remote, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("%w: remote auth endpoint is required", identity.ErrConfiguration)
	}

	s := &Remote{
		builder:       builder,
		endpoint:      endpoint,
		transport:     http.DefaultTransport,
		forwardPrefix: ForwardHeaderPrefix,
		maxBytes:      defaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.absolute() {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("%w: remote auth endpoint: %v", identity.ErrConfiguration, err)
		}
	}

	return s, nil
}

func (s *Remote) Name() string {
	return ProviderRemote
}

func (s *Remote) DefaultOptions() identity.ProviderOptions {
	return identity.ProviderOptions{
		ProviderName:  ProviderRemote,
		NameClaimType: claims.TypeName,
		RoleClaimType: claims.TypeRole,
		Enabled:       true,
	}
}

// Endpoint returns the configured auth document endpoint.
func (s *Remote) Endpoint() string {
	return s.endpoint
}

// CanHandle is true when no inline signal is present and the request is not
// for the auth document itself.
func (s *Remote) CanHandle(r *http.Request) bool {
	if headerSet(r, HeaderPrincipal) {
		return false
	}
	if _, ok := BearerToken(r); ok {
		return false
	}
	return !s.IsAuthEndpoint(r.URL.Path)
}

// IsAuthEndpoint reports whether path addresses the auth document.
func (s *Remote) IsAuthEndpoint(path string) bool {
	endpointPath := s.endpoint
	if s.absolute() {
		u, err := url.Parse(s.endpoint)
		if err != nil {
			return false
		}
		endpointPath = u.Path
	}
	endpointPath = strings.TrimPrefix(endpointPath, "/")
	return path == endpointPath || path == "/"+endpointPath
}

// Resolve fetches the auth document with the caller's cookies and forwarded
// headers and builds an identity from its first entry. The fetch is bound to
// ctx.
func (s *Remote) Resolve(ctx context.Context, r *http.Request, opts identity.ProviderOptions) (*identity.Identity, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	origin := &url.URL{Scheme: request.Scheme(r), Host: r.Host}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	jar.SetCookies(origin, r.Cookies())

	target := s.endpoint
	if !s.absolute() {
		target = origin.String() + "/" + strings.TrimPrefix(s.endpoint, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	for name, values := range r.Header {
		if len(name) >= len(s.forwardPrefix) && strings.EqualFold(name[:len(s.forwardPrefix)], s.forwardPrefix) {
			req.Header[name] = append([]string(nil), values...)
		}
	}

	client := &http.Client{Transport: s.transport, Jar: jar}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: auth endpoint returned status %d", ErrRemoteFetch, resp.StatusCode)
	}

	var docs []authDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, s.maxBytes)).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: auth document: %v", ErrDecode, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: auth document is empty", ErrDecode)
	}

	doc := docs[0]
	provider := doc.ProviderName
	if provider == "" {
		provider = opts.ProviderName
	}

	raw := doc.UserClaims
	if nameType := opts.NameType(); doc.UserID != "" && !claims.Claims(raw).Has(nameType) {
		raw = append(raw, claims.New(nameType, doc.UserID))
	}

	return s.builder.Build(raw, provider, opts), nil
}

func (s *Remote) absolute() bool {
	return strings.HasPrefix(strings.ToLower(s.endpoint), "http://") ||
		strings.HasPrefix(strings.ToLower(s.endpoint), "https://")
}
