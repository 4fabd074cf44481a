// File: internal/services/chat/errors.go
package chat

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeAuthentication ErrorType = "AUTHENTICATION"
	ErrTypeForbidden      ErrorType = "FORBIDDEN"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeConflict       ErrorType = "CONFLICT"
	ErrTypeInternal       ErrorType = "INTERNAL"
)

type ChatError struct {
	Type      ErrorType
	Operation string
	Message   string
	ChatID    string
	MessageID string
	UserID    string
	Cause     error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("chat %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("chat %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ChatError) Unwrap() error { return e.Cause }

func NewValidationError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewAuthenticationError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeAuthentication, Operation: operation, Message: msg}
}

func NewForbiddenError(operation, userID, chatID, msg string) *ChatError {
	return &ChatError{
		Type:      ErrTypeForbidden,
		Operation: operation,
		Message:   msg,
		UserID:    userID,
		ChatID:    chatID,
	}
}

func NewNotFoundError(operation, msg string, cause error) *ChatError {
	return &ChatError{Type: ErrTypeNotFound, Operation: operation, Message: msg, Cause: cause}
}

func NewConflictError(operation, msg string, cause error) *ChatError {
	return &ChatError{Type: ErrTypeConflict, Operation: operation, Message: msg, Cause: cause}
}

func NewInternalError(operation string, cause error) *ChatError {
	return &ChatError{Type: ErrTypeInternal, Operation: operation, Message: "internal error", Cause: cause}
}

// ErrorTypeOf returns the type of the first ChatError in err's chain, or
// ErrTypeInternal when there is none.
func ErrorTypeOf(err error) ErrorType {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeInternal
}

func IsType(err error, t ErrorType) bool {
	var ce *ChatError
	return errors.As(err, &ce) && ce.Type == t
}

// PublicMessage is the text that may be shown to a client. Internal causes
// are never exposed.
func PublicMessage(err error) string {
	var ce *ChatError
	if !errors.As(err, &ce) || ce.Type == ErrTypeInternal {
		return "internal server error"
	}
	return ce.Message
}
