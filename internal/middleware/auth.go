package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nuturetable/nuturetable/internal/auth"
	"github.com/nuturetable/nuturetable/internal/store"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "nuture_session"

// RequireAuth accepts either the session cookie or an "Authorization: Bearer"
// token issued for a live session, and populates AuthContext. Unauthenticated
// requests get a JSON 401.
func RequireAuth(sessionStore *store.SessionStore, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authenticate(r, sessionStore, secret)
			if !ok {
				unauthorized(w)
				return
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, sessionStore *store.SessionStore, secret []byte) (auth.AuthContext, bool) {
	if bearer, ok := bearerToken(r); ok {
		claims, err := auth.ParseToken(bearer, secret)
		if err != nil {
			return auth.AuthContext{}, false
		}
		sess, err := sessionStore.GetByID(claims.SessionID)
		if err != nil || sess == nil || sess.UserID != claims.UserID {
			return auth.AuthContext{}, false
		}
		return auth.AuthContext{UserID: sess.UserID, SessionID: sess.ID, Method: "bearer"}, true
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.AuthContext{}, false
	}
	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}
	return auth.AuthContext{UserID: sess.UserID, SessionID: sess.ID, Method: "cookie"}, true
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="nuturetable"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
