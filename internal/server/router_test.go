package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/strategy"
)

func TestAuthenticate(t *testing.T) {
	t.Run("success attaches the identity", func(t *testing.T) {
		stub := strategy.NewStubStrategy("stub")
		var seen *identity.Identity
		handler := Authenticate(newTestEngine(t, stub), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = identity.FromContext(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotNil(t, seen)
		assert.Equal(t, "stub-user", seen.Name())
	})

	t.Run("failure continues unauthenticated", func(t *testing.T) {
		stub := strategy.NewStubStrategy("stub").WithError(strategy.ErrDecode)
		called := false
		handler := Authenticate(newTestEngine(t, stub), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			_, ok := identity.FromContext(r.Context())
			assert.False(t, ok)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, called)
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	admin := identity.NewBuilder().Build([]claims.Claim{
		claims.New(claims.TypeName, "jane"),
		claims.New(claims.TypeRole, "Admin"),
	}, "aad", identity.ProviderOptions{})

	tests := []struct {
		name     string
		id       *identity.Identity
		role     string
		wantCode int
	}{
		{"anonymous", nil, "Admin", http.StatusUnauthorized},
		{"missing role", admin, "Auditor", http.StatusForbidden},
		{"role held", admin, "Admin", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.id != nil {
				req = req.WithContext(identity.NewContext(req.Context(), tt.id))
			}
			rec := httptest.NewRecorder()
			RequireRole(tt.role)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRouter(t *testing.T) {
	stub := strategy.NewStubStrategy("stub").
		WithCanHandle(func(r *http.Request) bool { return r.Header.Get("X-Test-User") != "" }).
		WithClaims(claims.New(claims.TypeName, "jane"), claims.New(claims.TypeRole, "Reader"))

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "edgeid_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := newHealthTestServer()
	srv.SetReady()
	router := NewRouter(RouterConfig{
		Authenticator: newTestEngine(t, stub),
		Gatherer:      reg,
		Liveness:      srv.handleLiveness,
		Readiness:     srv.handleReadiness,
	})

	t.Run("whoami returns the identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
		req.Header.Set("X-Test-User", "1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body WhoAmIResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "jane", body.Name)
		assert.Equal(t, "stub", body.ProviderName)
		assert.Equal(t, []string{"Reader"}, body.Roles)
		assert.Equal(t, identity.DefaultScheme, body.AuthenticationScheme)
	})

	t.Run("whoami rejects anonymous callers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "edgeid_test_total 1")
	})

	t.Run("health", func(t *testing.T) {
		for _, path := range []string{"/healthz/live", "/healthz/ready"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})
}
