package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/identity"
)

// RouterConfig configures NewRouter
type RouterConfig struct {
	Authenticator Authenticator
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger

	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
}

// NewRouter creates the HTTP router.
//
// Routes:
//   - GET /healthz/live - Liveness probe
//   - GET /healthz/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (when a gatherer is configured)
//   - GET /v1/whoami - The caller's resolved identity (401 when anonymous)
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if cfg.Liveness != nil {
		r.Get("/healthz/live", cfg.Liveness)
	}
	if cfg.Readiness != nil {
		r.Get("/healthz/ready", cfg.Readiness)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.Authenticator, logger))
		r.With(RequireIdentity).Get("/whoami", handleWhoAmI)
	})

	return r
}

// WhoAmIResponse is the body of GET /v1/whoami
type WhoAmIResponse struct {
	Name                 string        `json:"name"`
	ProviderName         string        `json:"provider_name"`
	Roles                []string      `json:"roles"`
	AuthenticationScheme string        `json:"authentication_scheme"`
	AuthenticationType   string        `json:"authentication_type"`
	NameClaimType        string        `json:"name_claim_type"`
	RoleClaimType        string        `json:"role_claim_type"`
	Claims               claims.Claims `json:"claims"`
}

// NewWhoAmIResponse renders id
func NewWhoAmIResponse(id *identity.Identity) WhoAmIResponse {
	roles := id.Roles()
	if roles == nil {
		roles = []string{}
	}
	return WhoAmIResponse{
		Name:                 id.Name(),
		ProviderName:         id.ProviderName(),
		Roles:                roles,
		AuthenticationScheme: id.AuthenticationScheme(),
		AuthenticationType:   id.AuthenticationType(),
		NameClaimType:        id.NameClaimType(),
		RoleClaimType:        id.RoleClaimType(),
		Claims:               id.Claims(),
	}
}

func handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	writeJSON(w, http.StatusOK, NewWhoAmIResponse(id))
}

// requestLogger logs each request at debug level on completion
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelDebug, "HTTP request completed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
