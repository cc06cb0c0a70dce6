package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/tokengate/tokengate-go/internal/logging"
)

// Marketing pages also served under a locale prefix, e.g. /de/suna.
var marketingRoutes = []string{"/", "/suna", "/enterprise", "/legal", "/support", "/templates"}

var publicRoutes = []string{
	"/",
	"/auth",
	"/auth/callback",
	"/auth/signup",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/login",
	"/legal",
	"/api/auth",
	"/share",
	"/templates",
	"/enterprise",
	"/master-login",
	"/checkout",
	"/support",
	"/suna",
	"/help",
	"/credits-explained",
	"/agents-101",
}

var protectedRoutes = []string{
	"/dashboard",
	"/agents",
	"/projects",
	"/settings",
	"/subscription",
	"/billing",
	"/profile",
}

// Query parameters that mark an auth provider callback landing on "/".
var callbackParams = []string{"code", "token", "type", "error"}

// RouteGuard decides, for page requests, whether the visitor may see the
// page or must sign in first.
type RouteGuard struct {
	auth   Authenticator
	public []string
	// Locale home pages match only exactly, as "/" does.
	localeRoots []string
}

// NewRouteGuard builds a guard whose public routes include the marketing
// pages under each of locales.
func NewRouteGuard(auth Authenticator, locales []string) *RouteGuard {
	g := &RouteGuard{auth: auth, public: slices.Clone(publicRoutes)}
	for _, locale := range locales {
		for _, route := range marketingRoutes {
			if route == "/" {
				g.localeRoots = append(g.localeRoots, "/"+locale)
			} else {
				g.public = append(g.public, "/"+locale+route)
			}
		}
	}
	return g
}

// Middleware applies the guard in front of next.
func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case skipGuard(path):
		case path == "/" && hasAny(r.URL.Query(), callbackParams):
			target := url.URL{Path: "/auth/callback", RawQuery: r.URL.RawQuery}
			http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
			return
		case g.IsPublic(path):
		case IsProtected(path) && !g.authenticated(r):
			logging.FromContext(r.Context()).Debug("redirecting unauthenticated visitor to login", "path", path)
			target := url.URL{Path: "/login", RawQuery: url.Values{"returnUrl": {path}}.Encode()}
			http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsPublic reports whether path is reachable without signing in.
func (g *RouteGuard) IsPublic(path string) bool {
	return slices.Contains(g.localeRoots, path) || matchesAny(path, g.public)
}

// IsProtected reports whether path requires a signed-in visitor.
func IsProtected(path string) bool {
	return matchesAny(path, protectedRoutes)
}

func (g *RouteGuard) authenticated(r *http.Request) bool {
	token := TokenFromRequest(r)
	if token == "" {
		return false
	}
	_, err := g.auth.Authenticate(r.Context(), token)
	return err == nil
}

// Static assets, framework internals and API calls are never guarded.
func skipGuard(path string) bool {
	return strings.HasPrefix(path, "/_next") ||
		strings.HasPrefix(path, "/favicon") ||
		strings.Contains(path, ".") ||
		strings.HasPrefix(path, "/api/")
}

// matchesAny reports whether path equals a route or lies beneath it.
func matchesAny(path string, routes []string) bool {
	for _, route := range routes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

func hasAny(q url.Values, keys []string) bool {
	for _, k := range keys {
		if q.Get(k) != "" {
			return true
		}
	}
	return false
}
