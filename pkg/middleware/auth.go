package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httputil"
)

// RequireAPIKey guards merchant-only routes (order management, admin). The
// key is read from "Authorization: Bearer <key>" or the X-API-Key header.
// With no keys configured every request is rejected.
func RequireAPIKey(keys []string) func(http.Handler) http.Handler {
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := apiKeyFromRequest(r)
			if presented == "" {
				writeAuthError(w, "missing api key")
				return
			}
			for _, k := range valid {
				if subtle.ConstantTimeCompare(k, []byte(presented)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, "invalid api key")
		})
	}
}

func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: message},
	})
}
