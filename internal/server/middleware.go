package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/identity"
)

// Authenticate resolves the caller of every request. A resolved identity is
// attached to the request context (see identity.FromContext). Failures are
// logged and the request continues unauthenticated, as it does when no
// strategy applies; handlers that need an identity use RequireRole or check
// the context themselves.
func Authenticate(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := authenticator.Authenticate(r.Context(), r)
			switch outcome.Status {
			case engine.StatusSuccess:
				r = r.WithContext(identity.NewContext(r.Context(), outcome.Identity))
			case engine.StatusFail:
				logger.LogAttrs(r.Context(), slog.LevelInfo,
					"Continuing unauthenticated after failed identity resolution",
					slog.String("resolution_id", outcome.ID),
					slog.String("provider", outcome.Provider),
					slog.String("reason", string(outcome.Reason)),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose identity does not hold role: 401
// without an authenticated identity, 403 without the role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := identity.FromContext(r.Context())
			if !ok || !id.IsAuthenticated() {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.HasRole(role) {
				writeError(w, http.StatusForbidden, "role "+role+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects requests without an authenticated identity with 401.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity.FromContext(r.Context())
		if !ok || !id.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
