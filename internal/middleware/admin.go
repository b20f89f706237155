package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/provider-search/internal/auth"
)

// AdminTokenValidator validates bearer tokens for admin routes.
// *auth.JWTService satisfies it.
type AdminTokenValidator interface {
	ValidateAdminToken(token string) (*auth.Claims, error)
}

// RequireAdmin rejects requests without a valid admin bearer token.
// Missing or invalid tokens get 401 auth_failed; a valid token without the
// admin role gets 403 forbidden. On success the token subject is stored in
// the request context. metrics may be nil.
func RequireAdmin(validator AdminTokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, status int, code, reason, message string) {
		if metrics != nil {
			metrics.IncAdminAuthFailures(reason)
		}
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
		}
		writeError(w, r.Context(), status, code, message)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				reject(w, r, http.StatusUnauthorized, "auth_failed", "missing_token", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateAdminToken(token)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInsufficientRole):
				reject(w, r, http.StatusForbidden, "forbidden", "forbidden", "Admin role required")
				return
			case errors.Is(err, auth.ErrExpiredToken):
				reject(w, r, http.StatusUnauthorized, "auth_failed", "expired_token", "Token has expired")
				return
			default:
				reject(w, r, http.StatusUnauthorized, "auth_failed", "invalid_token", "Invalid token")
				return
			}

			ctx := SetSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
