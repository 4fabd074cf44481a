// File: internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/iyunix/go-parley/internal/dtos"
	"github.com/iyunix/go-parley/internal/middleware"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
)

const maxBodyBytes = 1 << 20

// Logger defines the logging interface used by handlers
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func statusFor(t chatservice.ErrorType) int {
	switch t {
	case chatservice.ErrTypeValidation:
		return http.StatusBadRequest
	case chatservice.ErrTypeAuthentication:
		return http.StatusUnauthorized
	case chatservice.ErrTypeForbidden:
		return http.StatusForbidden
	case chatservice.ErrTypeNotFound:
		return http.StatusNotFound
	case chatservice.ErrTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a ChatError to its status code. Internal causes
// are logged and replaced by a generic message.
func writeServiceError(w http.ResponseWriter, logger Logger, r *http.Request, err error) {
	t := chatservice.ErrorTypeOf(err)
	status := statusFor(t)
	if status == http.StatusInternalServerError {
		logger.Error("chat operation failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, chatservice.PublicMessage(err), status)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return dtos.Validate(dst)
}

// callerID returns the authenticated user or writes 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}
