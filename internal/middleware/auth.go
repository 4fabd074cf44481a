package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Verifier resolves a bearer credential to a user id.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// NewJWTMiddleware validates the Authorization bearer token and stores the
// caller's id in the request context.
func NewJWTMiddleware(verifier Verifier, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			userID, err := verifier.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.Info("invalid bearer token", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
