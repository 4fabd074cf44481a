// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/iyunix/go-parley/internal/ratelimit"
)

// RateLimitMiddleware throttles per authenticated user, falling back to
// the client IP when the request carries no identity.
func RateLimitMiddleware(pool *ratelimit.Pool, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := "ip:" + ratelimit.GetClientIP(r)
			if userID, ok := UserIDFromContext(r.Context()); ok {
				identifier = "user:" + userID
			}

			allowed, info := pool.Allow(identifier)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))

			if !allowed {
				retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
				logger.Warn("rate limited", "identifier", identifier, "path", r.URL.Path, "retry_after_s", retryAfter)

				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "Too many requests. Please try again later.",
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
