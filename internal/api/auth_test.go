package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/prospekt/internal/session"
	"github.com/kalambet/prospekt/internal/storage"
)

const testJWTSecret = "jwt-test-secret"

func withSessions(t *testing.T) (func(*Deps), *session.Verifier) {
	t.Helper()
	v, err := session.NewVerifier(testJWTSecret)
	require.NoError(t, err)
	return func(d *Deps) {
		d.Verifier = v
		d.Session = session.NewMiddleware(v, "")
		d.Profiles = session.NewProfiles(d.Store, time.Minute)
	}, v
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.DefaultCookieName)
	return nil
}

func TestSession_SignInThenMe(t *testing.T) {
	mutate, v := withSessions(t)
	s := setupRouter(t, mutate)

	token, err := v.Issue("user-1", "jeanne@acme.fr", "Jeanne", time.Hour)
	require.NoError(t, err)

	rr := s.do(t, http.MethodPost, "/auth/session", `{"access_token":"`+token+`"}`)
	expectStatus(t, rr, http.StatusOK)
	cookie := sessionCookie(t, rr)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusOK)

	p := decode[storage.Profile](t, rr)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "jeanne@acme.fr", p.Email)
	assert.Equal(t, "Jeanne", p.Name)
	assert.Equal(t, storage.RoleCommercial, p.Role)
}

func TestSession_RejectsBadToken(t *testing.T) {
	mutate, _ := withSessions(t)
	s := setupRouter(t, mutate)

	other, err := session.NewVerifier("another-secret")
	require.NoError(t, err)
	forged, err := other.Issue("user-1", "", "", time.Hour)
	require.NoError(t, err)

	expectError(t, s.do(t, http.MethodPost, "/auth/session", `{"access_token":"`+forged+`"}`),
		http.StatusUnauthorized, "Invalid access token")
	expectError(t, s.do(t, http.MethodPost, "/auth/session", `{}`), http.StatusBadRequest, "access_token is required")
}

func TestSession_MeRequiresCookie(t *testing.T) {
	mutate, _ := withSessions(t)
	s := setupRouter(t, mutate)
	expectError(t, s.do(t, http.MethodGet, "/api/me", ""), http.StatusUnauthorized, "Not authenticated")
}

func TestSession_Logout(t *testing.T) {
	mutate, _ := withSessions(t)
	s := setupRouter(t, mutate)

	rr := s.do(t, http.MethodPost, "/auth/logout", "")
	expectStatus(t, rr, http.StatusOK)
	assert.Less(t, sessionCookie(t, rr).MaxAge, 0)
}

func TestSession_NotConfigured(t *testing.T) {
	s := setupRouter(t, nil)
	expectError(t, s.do(t, http.MethodPost, "/auth/session", `{"access_token":"x"}`),
		http.StatusServiceUnavailable, "Sessions are not configured")
	expectError(t, s.do(t, http.MethodGet, "/api/me", ""), http.StatusUnauthorized, "Not authenticated")
}

func TestSession_PageRedirects(t *testing.T) {
	mutate, _ := withSessions(t)
	s := setupRouter(t, mutate)

	rr := s.do(t, http.MethodGet, "/prospects/42", "")
	expectStatus(t, rr, http.StatusFound)
	assert.Equal(t, "/login?redirect=%2Fprospects%2F42", rr.Header().Get("Location"))

	// API and health paths are never redirected.
	expectStatus(t, s.do(t, http.MethodGet, "/health", ""), http.StatusOK)
	rr = s.do(t, http.MethodGet, "/api/prospects", "")
	expectStatus(t, rr, http.StatusOK)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(rr.Body.String()), "["))
}
