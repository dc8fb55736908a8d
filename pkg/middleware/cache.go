package middleware

import "net/http"

// NoStore marks every response as uncacheable. Session and order payloads
// carry client tokens and must never be stored by proxies or browsers.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
