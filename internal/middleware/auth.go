package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tokengate/tokengate-go/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// Authenticator resolves a raw token to the identity it carries.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.UserInfo, error)
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the auth cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// RequireUser returns middleware that rejects requests without a valid
// token and stores the authenticated user in the request context.
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeBearerError(w, "missing token")
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				writeBearerError(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user model.UserInfo) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) (model.UserInfo, bool) {
	user, ok := ctx.Value(userKey).(model.UserInfo)
	return user, ok
}

// RFC 6750 error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
