package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/choresync/internal/auth"
)

// RequireBearer rejects requests without the household bearer token before
// they reach the wrapped handler.
func RequireBearer(v *auth.TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r)
			if !ok || !v.Valid(token) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="choresync"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
