// Package auth checks the shared household bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenValidator accepts exactly one configured token. An empty configured
// token accepts nothing.
type TokenValidator struct {
	token string
}

func NewTokenValidator(token string) *TokenValidator {
	return &TokenValidator{token: token}
}

// Valid reports whether presented matches the configured token. The
// comparison takes the same time for any presented token of a given length.
func (v *TokenValidator) Valid(presented string) bool {
	if v.token == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(v.token)) == 1
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
