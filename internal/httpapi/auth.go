package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Middleware wraps a route with a cross-cutting check.
type Middleware func(http.Handler) http.Handler

// RequireBearerToken admits requests carrying "Authorization: Bearer <token>".
// An empty token admits nobody.
func RequireBearerToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusForbidden, "forbidden")
	})
}
