package auth

import (
	"net/http"
	"strings"
	"time"
)

const bearerPrefix = "Bearer "

// TokenFromRequest returns the session token carried by the request: the named cookie first,
// then an Authorization bearer header. An empty string means no credential was presented.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil && cookie != nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// NewSessionCookie builds the cross-site session cookie handed to browsers.
func NewSessionCookie(name, token string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// ClearedSessionCookie builds a cookie instructing the browser to drop the session.
func ClearedSessionCookie(name string) *http.Cookie {
	cookie := NewSessionCookie(name, "", 0)
	cookie.MaxAge = -1
	return cookie
}
