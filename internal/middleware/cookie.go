package middleware

import (
	"net/http"
	"time"

	"github.com/tokengate/tokengate-go/internal/crypto"
)

// CookieName is the cookie carrying the token for browser clients.
const CookieName = "auth_token"

// SetAuthCookie stores token in an HttpOnly cookie that lives as long as
// the token. secure should be true in production.
func SetAuthCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(crypto.DefaultTokenLifetime / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie tells the browser to drop the auth cookie.
func ClearAuthCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
