package middleware

import (
	"net/http"

	"github.com/tranvu/mercato/internal/auth"
	"github.com/tranvu/mercato/internal/cookie"
	"github.com/tranvu/mercato/internal/crypto"
	"github.com/tranvu/mercato/internal/domain"
)

type contextKey string

// WithUser opens the session cookie and attaches the caller's identity to
// the request context. Optional: requests without a valid session continue
// anonymously.
func WithUser(enc crypto.Encryptor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookie.Get(r, cookie.SessionCookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := auth.OpenSession(enc, token)
			if err != nil {
				// Expired or tampered session, continue without user.
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.NewContextWithUser(r.Context(), session.User())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the caller is authenticated.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if domain.UserFromContext(r.Context()) == nil {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin ensures the caller is an authenticated admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := domain.UserFromContext(r.Context())
		if user == nil {
			respondUnauthorized(w, r)
			return
		}
		if user.Role != "admin" {
			respondForbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
