package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// NonceVerifier checks an ajax nonce for an action.
type NonceVerifier interface {
	Verify(token, action string) error
}

// RequireNonce rejects ajax requests whose "security" field is not a valid
// nonce for action. Rejections answer 403 with body -1.
func RequireNonce(v NonceVerifier, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.Verify(r.FormValue("security"), action); err != nil {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("-1"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminToken guards the admin routes with a static bearer token.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
