package middleware

import (
	"crypto/subtle"
	"net/http"
)

// SharedSecretHeader is the header carrying the internal trigger secret.
const SharedSecretHeader = "X-Internal-Secret"

// SharedSecret returns middleware that rejects requests whose secret header
// does not match the configured value. Used for internal endpoints that run
// without an end-user session.
func SharedSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(SharedSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
