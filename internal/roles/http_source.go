package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NamePlaceholder is replaced with the path-escaped caller name in an
// HTTPSource URL template.
const NamePlaceholder = "{name}"

// HTTPSource fetches roles from an HTTP service.
//
// The response body is either a JSON array of role names or an object with
// a "roles" array. 404 means the name holds no roles.
type HTTPSource struct {
	template string
	client   *http.Client
	headers  map[string]string
	maxBytes int64
}

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	// URL is the endpoint template, e.g. https://roles.internal/users/{name}.
	// Without a placeholder the name is sent as the "name" query parameter.
	URL string

	// Headers are set on every request.
	Headers map[string]string

	// Timeout bounds a single request (default: 10s).
	Timeout time.Duration

	// Transport is the HTTP transport. If nil, uses http.DefaultTransport.
	Transport http.RoundTripper
}

// NewHTTPSource creates an HTTP role source.
func NewHTTPSource(cfg HTTPSourceConfig) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("role source url is required")
	}
	if _, err := url.Parse(strings.ReplaceAll(cfg.URL, NamePlaceholder, "x")); err != nil {
		return nil, fmt.Errorf("invalid role source url: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &HTTPSource{
		template: cfg.URL,
		client:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		headers:  cfg.Headers,
		maxBytes: 1 << 20,
	}, nil
}

func (s *HTTPSource) Roles(ctx context.Context, name string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(name), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSource, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrSource, err)
	}

	roles, err := parseRoleDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	return clean(roles), nil
}

func (s *HTTPSource) url(name string) string {
	if strings.Contains(s.template, NamePlaceholder) {
		return strings.ReplaceAll(s.template, NamePlaceholder, url.PathEscape(name))
	}
	u, _ := url.Parse(s.template)
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String()
}

func parseRoleDocument(body []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid role document: %w", err)
	}
	return doc.Roles, nil
}
