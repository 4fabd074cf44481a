package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by the chat service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PresenceCounter is satisfied by the presence registry.
type PresenceCounter interface {
	Users() int
}

func HealthHandler(checker HealthChecker, presence PresenceCounter, logger Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"onlineUsers": presence.Users(),
		})
	}
}
