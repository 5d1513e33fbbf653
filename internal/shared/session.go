package shared

import (
	"net/http"
	"strings"
	"time"
)

// DefaultSessionCookie is the cookie that carries the signed session token.
const DefaultSessionCookie = "session"

// SessionCookies reads and writes the session token cookie. The token itself is
// self-contained, so nothing is stored server side.
type SessionCookies struct {
	name   string
	ttl    time.Duration
	secure bool
}

// NewSessionCookies constructs a SessionCookies helper.
func NewSessionCookies(name string, ttl time.Duration, secure bool) *SessionCookies {
	if strings.TrimSpace(name) == "" {
		name = DefaultSessionCookie
	}
	return &SessionCookies{name: name, ttl: ttl, secure: secure}
}

// Token returns the raw token from the request, or "" when absent.
func (sc *SessionCookies) Token(r *http.Request) string {
	cookie, err := r.Cookie(sc.name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// Write sets the session cookie to token, expiring at expiresAt.
func (sc *SessionCookies) Write(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(sc.ttl.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sc.name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear instructs the browser to drop the session cookie.
func (sc *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sc.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TTL exposes the configured session lifetime.
func (sc *SessionCookies) TTL() time.Duration {
	return sc.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sc *SessionCookies) CookieName() string {
	return sc.name
}
