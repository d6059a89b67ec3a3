package api

import (
	"net/http"
	"time"

	"github.com/kalambet/prospekt/internal/session"
)

type sessionRequest struct {
	AccessToken string `json:"access_token"`
}

// handleCreateSession turns a verified access token into the session cookie
// and refreshes the user's profile.
func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Session == nil || deps.Verifier == nil {
			writeError(w, http.StatusServiceUnavailable, "Sessions are not configured")
			return
		}

		var req sessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.AccessToken == "" {
			writeError(w, http.StatusBadRequest, "access_token is required")
			return
		}

		claims, err := deps.Verifier.Verify(req.AccessToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		if deps.Profiles != nil {
			if err := deps.Profiles.SignedIn(r.Context(), claims); err != nil {
				deps.writeInternal(w, err)
				return
			}
		}

		expires := time.Time{}
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		deps.Session.SetCookie(w, req.AccessToken, expires)
		writeJSON(w, http.StatusOK, map[string]string{"user_id": claims.UserID()})
	}
}

func handleLogout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Session == nil {
			writeError(w, http.StatusServiceUnavailable, "Sessions are not configured")
			return
		}
		if claims, ok := session.FromContext(r.Context()); ok && deps.Profiles != nil {
			deps.Profiles.SignedOut(claims.UserID())
		}
		deps.Session.ClearCookie(w)
		writeDeleted(w)
	}
}

// handleMe returns the profile of the signed-in user.
func handleMe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := session.FromContext(r.Context())
		if !ok || deps.Profiles == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		p, err := deps.Profiles.Lookup(r.Context(), claims)
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
