package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "sb-access-token"

type contextKey struct{}

// FromContext returns the claims attached by Middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(Claims)
	return c, ok
}

// WithClaims attaches claims to ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

var (
	publicPrefixes = []string{"/login", "/signup", "/reset-password"}
	authPrefixes   = []string{"/login", "/signup"}
	// Machine-facing paths never redirect; handlers decide on their own.
	bypassPrefixes = []string{"/api/", "/auth/", "/files/"}
	bypassExact    = []string{"/api", "/auth", "/health", "/metrics"}
)

// Middleware attaches the claims of a valid session cookie to the request
// and applies the page redirect rules.
type Middleware struct {
	verifier   *Verifier
	cookieName string
}

func NewMiddleware(v *Verifier, cookieName string) *Middleware {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Middleware{verifier: v, cookieName: cookieName}
}

func (m *Middleware) CookieName() string { return m.cookieName }

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, signedIn := m.claims(r)
		if signedIn {
			r = r.WithContext(WithClaims(r.Context(), claims))
		}

		if target := redirectTarget(r.URL.Path, signedIn); target != "" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) claims(r *http.Request) (Claims, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return Claims{}, false
	}
	c, err := m.verifier.Verify(cookie.Value)
	if err != nil {
		return Claims{}, false
	}
	return c, true
}

// SetCookie stores token as the session cookie until expires.
func (m *Middleware) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Middleware) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectTarget returns where a page request should go, or "" to serve it.
func redirectTarget(path string, signedIn bool) string {
	if bypassed(path) {
		return ""
	}
	if path == "/" {
		if signedIn {
			return "/dashboard"
		}
		return "/login"
	}
	if signedIn {
		if hasAnyPrefix(path, authPrefixes) {
			return "/dashboard"
		}
		return ""
	}
	if hasAnyPrefix(path, publicPrefixes) {
		return ""
	}
	return "/login?redirect=" + url.QueryEscape(path)
}

func bypassed(path string) bool {
	for _, p := range bypassExact {
		if path == p {
			return true
		}
	}
	return hasAnyPrefix(path, bypassPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
