// Package request provides common request-related types used across edgeid.
//
// RequestAttributes is the transport-neutral view of an inbound request. It is
// built from net/http requests and from Envoy CheckRequests and is handed to
// provider filter expressions.
package request

import (
	"net"
	"net/http"
	"strings"
)

// RequestAttributes contains attributes about the incoming request
// All fields are exported and JSON-serializable
type RequestAttributes struct {
	// Method is the HTTP method
	Method string `json:"method,omitempty"`

	// Path is the request path being accessed
	Path string `json:"path,omitempty"`

	// IPAddress is the client IP address
	IPAddress string `json:"ip_address,omitempty"`

	// UserAgent is the client user agent
	UserAgent string `json:"user_agent,omitempty"`

	// Headers contains the request headers with lowercase names.
	// Multi-valued headers are joined with ", ".
	Headers map[string]string `json:"headers,omitempty"`

	// Additional arbitrary context
	// This can include:
	// - "host": The HTTP host header
	// - "scheme": The request scheme
	// - "context_extensions": Envoy's context extensions (map[string]string)
	// Note: No omitempty tag so the field is always present for filter
	// expressions.
	Additional map[string]any `json:"additional"`
}

// FromHTTPRequest builds RequestAttributes from an http.Request.
func FromHTTPRequest(r *http.Request) *RequestAttributes {
	attrs := &RequestAttributes{
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		Headers:    make(map[string]string, len(r.Header)),
		Additional: make(map[string]any),
	}

	if r.URL != nil {
		attrs.Path = r.URL.Path
	}

	for name, values := range r.Header {
		attrs.Headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		attrs.IPAddress = host
	} else {
		attrs.IPAddress = r.RemoteAddr
	}

	if r.Host != "" {
		attrs.Additional["host"] = r.Host
	}
	attrs.Additional["scheme"] = Scheme(r)

	return attrs
}

// Scheme returns the externally visible scheme of r. A forwarding proxy's
// X-Forwarded-Proto wins over the connection state.
func Scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		// A chain of proxies appends; the first entry is the client-facing one.
		if i := strings.IndexByte(proto, ','); i >= 0 {
			proto = proto[:i]
		}
		return strings.ToLower(strings.TrimSpace(proto))
	}
	if r.URL != nil && r.URL.Scheme != "" {
		return r.URL.Scheme
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
