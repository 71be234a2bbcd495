package middleware

import (
	"net/http"
	"strings"
)

// CORS returns middleware adding Cross-Origin Resource Sharing headers. Pages
// are posted from the instance origin with the operator's cookies, so a
// configured instance origin is echoed back with credentials allowed; with no
// instance configured any origin is accepted without credentials.
func CORS(instanceURL string) func(http.HandlerFunc) http.HandlerFunc {
	allowed := strings.TrimRight(instanceURL, "/")

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowed == "":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && strings.EqualFold(origin, allowed):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-UserToken")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}
}
