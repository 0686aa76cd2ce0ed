// Package lua exposes host services to role-source scripts.
package lua

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultMaxBodyBytes caps how much of a response body is handed to a script.
const DefaultMaxBodyBytes = 1 << 20

// RequestOptions can modify a request before it is sent,
// e.g. to add authentication headers.
type RequestOptions func(*http.Request) error

// HTTPService provides an HTTP client to Lua scripts
type HTTPService struct {
	ctx            context.Context
	client         *http.Client
	requestOptions RequestOptions
	maxBodyBytes   int64
}

// HTTPServiceConfig configures the HTTP service
type HTTPServiceConfig struct {
	// Timeout for HTTP requests (default: 30s)
	Timeout time.Duration

	// RequestOptions runs on every request before it is sent
	RequestOptions RequestOptions

	// Transport is the HTTP transport to use for requests.
	// If nil, uses http.DefaultTransport
	Transport http.RoundTripper

	// MaxBodyBytes caps response bodies (default: DefaultMaxBodyBytes)
	MaxBodyBytes int64
}

// NewHTTPService creates an HTTP service with the given timeout
func NewHTTPService(timeout time.Duration) *HTTPService {
	return NewHTTPServiceWithConfig(HTTPServiceConfig{Timeout: timeout})
}

// NewHTTPServiceWithConfig creates an HTTP service with full configuration
func NewHTTPServiceWithConfig(config HTTPServiceConfig) *HTTPService {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &HTTPService{
		ctx: context.Background(),
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		requestOptions: config.RequestOptions,
		maxBodyBytes:   config.MaxBodyBytes,
	}
}

// WithContext returns a copy of the service whose requests are bound to ctx.
func (s *HTTPService) WithContext(ctx context.Context) *HTTPService {
	cp := *s
	cp.ctx = ctx
	return &cp
}

// Register adds the HTTP service to the Lua state
// Usage in Lua:
//
//	local response = http.get("https://roles.example.com/users/jane")
//	local response = http.post(url, body, {["Content-Type"] = "application/json"})
//	local response, err = http.request("PUT", url, body, headers)
func (s *HTTPService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(s.luaGet))
	L.SetField(mod, "post", L.NewFunction(s.luaPost))
	L.SetField(mod, "request", L.NewFunction(s.luaRequest))
	L.SetGlobal("http", mod)
}

// Args: url, [headers]
func (s *HTTPService) luaGet(L *lua.LState) int {
	return s.do(L, http.MethodGet, L.CheckString(1), "", s.parseHeaders(L, 2))
}

// Args: url, body, [headers]
func (s *HTTPService) luaPost(L *lua.LState) int {
	return s.do(L, http.MethodPost, L.CheckString(1), L.CheckString(2), s.parseHeaders(L, 3))
}

// Args: method, url, [body], [headers]
func (s *HTTPService) luaRequest(L *lua.LState) int {
	return s.do(L, strings.ToUpper(L.CheckString(1)), L.CheckString(2), L.OptString(3, ""), s.parseHeaders(L, 4))
}

// do sends the request and pushes either the response table or (nil, error).
func (s *HTTPService) do(L *lua.LState, method, url, body string, headers map[string]string) int {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, url, reader)
	if err != nil {
		return pushError(L, "failed to create request: %v", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if s.requestOptions != nil {
		if err := s.requestOptions(req); err != nil {
			return pushError(L, "request options failed: %v", err)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return pushError(L, "request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	L.Push(s.responseToLua(L, resp))
	return 1
}

func pushError(L *lua.LState, format string, args ...any) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(fmt.Sprintf(format, args...)))
	return 2
}

// parseHeaders reads an optional header table argument
func (s *HTTPService) parseHeaders(L *lua.LState, arg int) map[string]string {
	headers := make(map[string]string)

	if L.GetTop() < arg {
		return headers
	}

	tbl, ok := L.Get(arg).(*lua.LTable)
	if !ok {
		return headers
	}

	tbl.ForEach(func(key, value lua.LValue) {
		if key.Type() == lua.LTString && value.Type() == lua.LTString {
			headers[key.String()] = value.String()
		}
	})

	return headers
}

// responseToLua converts an HTTP response to {status, body, headers}
func (s *HTTPService) responseToLua(L *lua.LState, resp *http.Response) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "status", lua.LNumber(resp.StatusCode))

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		L.SetField(tbl, "body", lua.LString(""))
		L.SetField(tbl, "error", lua.LString(fmt.Sprintf("failed to read body: %v", err)))
	} else {
		L.SetField(tbl, "body", lua.LString(string(bodyBytes)))
	}

	headersTbl := L.NewTable()
	for key, values := range resp.Header {
		if len(values) > 0 {
			L.SetField(headersTbl, key, lua.LString(values[0]))
		}
	}
	L.SetField(tbl, "headers", headersTbl)

	return tbl
}
