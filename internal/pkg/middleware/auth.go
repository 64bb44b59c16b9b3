package middleware

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/inkrouter/ink-router/internal/pkg/errors"
)

// APIKeyHeader is the header clients send the shared secret in.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that requires a matching API key on every
// request. An empty configured key disables the check entirely.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				apperrors.WriteError(w, apperrors.UnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
