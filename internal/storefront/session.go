package storefront

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
	sessionMaxAge = 7 * 24 * 60 * 60
)

type sessionKey struct{}

// sessionMiddleware resolves the cart session from the X-Session-ID header
// or the session cookie and issues a new one when neither is usable.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionHeader)
		if id == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				id = c.Value
			}
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   sessionMaxAge,
				HttpOnly: true,
				Secure:   s.deps.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(sessionHeader, id)

		ctx := context.WithValue(r.Context(), sessionKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
