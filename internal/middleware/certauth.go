// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const platformKey ctxKey = "platform"

// CertAuth enforces mutual TLS authentication on the platform-facing routes.
//
// The TLS layer has already verified any presented certificate against the
// CA, so a request is accepted when it carries one. When allowedCN is not
// empty the certificate Common Name must match it. The Common Name is stored
// in the request context as the calling platform identity.
func CertAuth(allowedCN string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
				http.Error(w, "no client certificate provided", http.StatusUnauthorized)
				return
			}
			cn := r.TLS.PeerCertificates[0].Subject.CommonName
			if allowedCN != "" && cn != allowedCN {
				http.Error(w, "client certificate not allowed", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), platformKey, cn)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPlatformIDFromContext extracts the platform identity (Common Name from
// the client certificate) from the request context. Returns an empty string
// if not found.
func GetPlatformIDFromContext(ctx context.Context) string {
	val := ctx.Value(platformKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
