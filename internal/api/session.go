package api

import (
	"context"
	"net/http"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/session"
)

type sessionContextKey struct{}

// sessionMiddleware binds the request to the session named by the cookie and
// issues a new cookie when none is valid.
func sessionMiddleware(cfg config.SessionConfig, sessions *session.Manager) func(http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "sqlassist_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(cookieName); err == nil {
				id = cookie.Value
			}
			sess, created := sessions.Resolve(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess
}

func handleGetSession(_ Dependencies, _ config.Config, w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"session": sess.State(),
		"schema":  newSchemaView(sess.Schema.Snapshot()),
	})
}
