package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"

	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// Identity headers set on requests admitted by ext_authz.
const (
	HeaderIdentityPrefix    = "X-Edgeid-"
	HeaderIdentityName      = HeaderIdentityPrefix + "Name"
	HeaderIdentityProvider  = HeaderIdentityPrefix + "Provider"
	HeaderIdentityRoles     = HeaderIdentityPrefix + "Roles"
	HeaderIdentityPrincipal = HeaderIdentityPrefix + "Principal"
)

// Authenticator resolves the caller of an HTTP request
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) engine.Outcome
}

// AuthzServer implements Envoy's ext_authz Authorization service
type AuthzServer struct {
	authv3.UnimplementedAuthorizationServer

	authenticator Authenticator
}

// NewAuthzServer creates a new ext_authz server
func NewAuthzServer(authenticator Authenticator) *AuthzServer {
	return &AuthzServer{
		authenticator: authenticator,
	}
}

// Check implements the ext_authz check endpoint.
//
// A resolved identity is forwarded upstream in X-Edgeid-* headers. A request
// no strategy applies to is allowed through without identity headers; the
// upstream decides whether anonymous access is acceptable. A failed
// resolution is denied. Inbound X-Edgeid-* headers are always removed.
func (s *AuthzServer) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return s.denyResponse(codes.InvalidArgument, err.Error()), nil
	}

	headersToRemove := spoofableHeaders(req)

	outcome := s.authenticator.Authenticate(ctx, httpReq)
	switch outcome.Status {
	case engine.StatusFail:
		return s.denyResponse(codes.Unauthenticated,
			fmt.Sprintf("identity resolution failed: %s", outcome.Reason)), nil

	case engine.StatusSuccess:
		headers, err := identityHeaders(outcome)
		if err != nil {
			return s.denyResponse(codes.Internal, fmt.Sprintf("failed to encode identity: %v", err)), nil
		}
		return okResponse(headers, headersToRemove), nil

	default:
		return okResponse(nil, headersToRemove), nil
	}
}

// identityHeaders renders a resolved identity as upstream request headers
func identityHeaders(outcome engine.Outcome) ([]*corev3.HeaderValueOption, error) {
	id := outcome.Identity
	principal, err := strategy.EncodePrincipal(id.ProviderName(), id.Claims())
	if err != nil {
		return nil, err
	}

	values := []struct{ key, value string }{
		{HeaderIdentityName, id.Name()},
		{HeaderIdentityProvider, id.ProviderName()},
		{HeaderIdentityRoles, strings.Join(id.Roles(), ",")},
		{HeaderIdentityPrincipal, principal},
	}

	headers := make([]*corev3.HeaderValueOption, 0, len(values))
	for _, v := range values {
		headers = append(headers, &corev3.HeaderValueOption{
			Header: &corev3.HeaderValue{
				Key:   v.key,
				Value: v.value,
			},
			AppendAction: corev3.HeaderValueOption_OVERWRITE_IF_EXISTS_OR_ADD,
		})
	}
	return headers, nil
}

// spoofableHeaders lists inbound identity headers that must not reach the upstream.
// The fixed set is always removed, whether or not the caller sent it.
func spoofableHeaders(req *authv3.CheckRequest) []string {
	remove := []string{
		strings.ToLower(HeaderIdentityName),
		strings.ToLower(HeaderIdentityProvider),
		strings.ToLower(HeaderIdentityRoles),
		strings.ToLower(HeaderIdentityPrincipal),
	}
	prefix := strings.ToLower(HeaderIdentityPrefix)
	for name := range req.GetAttributes().GetRequest().GetHttp().GetHeaders() {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, prefix) && !slices.Contains(remove, lower) {
			remove = append(remove, lower)
		}
	}
	return remove
}

// buildHTTPRequest rebuilds the inbound request described by an Envoy CheckRequest
func buildHTTPRequest(ctx context.Context, req *authv3.CheckRequest) (*http.Request, error) {
	httpAttrs := req.GetAttributes().GetRequest().GetHttp()
	if httpAttrs == nil {
		return nil, fmt.Errorf("no HTTP request attributes")
	}

	scheme := httpAttrs.GetScheme()
	if scheme == "" {
		scheme = "http"
	}
	host := httpAttrs.GetHost()
	path := httpAttrs.GetPath()
	if path == "" {
		path = "/"
	}

	target, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %v", path, err)
	}
	target.Scheme = scheme
	target.Host = host

	method := httpAttrs.GetMethod()
	if method == "" {
		method = http.MethodGet
	}

	r, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %v", err)
	}
	r.Host = host

	for name, value := range httpAttrs.GetHeaders() {
		// HTTP/2 pseudo headers (:authority, :path, ...) are already mapped
		if strings.HasPrefix(name, ":") {
			continue
		}
		r.Header.Set(name, value)
	}

	if addr := req.GetAttributes().GetSource().GetAddress().GetSocketAddress(); addr != nil {
		r.RemoteAddr = net.JoinHostPort(addr.GetAddress(), strconv.FormatUint(uint64(addr.GetPortValue()), 10))
	}

	return r, nil
}

// okResponse creates an allow response
func okResponse(headers []*corev3.HeaderValueOption, headersToRemove []string) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code: int32(codes.OK),
		},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				Headers:         headers,
				HeadersToRemove: headersToRemove,
			},
		},
	}
}

// denyResponse creates a denial response
func (s *AuthzServer) denyResponse(code codes.Code, message string) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code:    int32(code),
			Message: message,
		},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Body: message,
			},
		},
	}
}
