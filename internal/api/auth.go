package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/security"
)

type userKey struct{}

// requireAuth validates the bearer token and scopes the request to its
// subject. allowQuery also accepts ?access_token=.
func (s *Server) requireAuth(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := security.BearerToken(r.Header.Get("Authorization"))
			if !ok && allowQuery {
				tok = r.URL.Query().Get("access_token")
				ok = tok != ""
			}
			if !ok {
				s.fail(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized))
				return
			}
			if s.tokens == nil {
				s.fail(w, r, fmt.Errorf("%w: token validation not configured", domain.ErrUnauthorized))
				return
			}
			userID, err := s.tokens.Verify(tok)
			if err != nil {
				s.fail(w, r, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
		})
	}
}

// userID returns the authenticated user, or "" outside requireAuth.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}
