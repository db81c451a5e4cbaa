// Package middleware holds the HTTP middleware chain: bearer auth, client IP
// extraction, and request telemetry.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"fieldops-session-control/internal/httpapi"
	"fieldops-session-control/internal/security"
)

const bearerPrefix = "bearer "

// TokenVerifier validates identity-provider session tokens.
type TokenVerifier interface {
	Verify(token string) (*security.Identity, error)
}

// Auth returns middleware that validates the Bearer token from the
// Authorization header and sets user_id, org_id, and the raw token in context.
// Requests without a valid token get 401; mount on the protected subrouter
// only.
func Auth(verifier TokenVerifier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				httpapi.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			ident, err := verifier.Verify(token)
			if err != nil {
				httpapi.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			ctx := WithIdentity(r.Context(), ident.UserID, ident.OrgID)
			ctx = WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
