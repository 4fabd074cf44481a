// File: internal/services/chat/types.go
package chat

// Logger defines the logging interface used across chat services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Settings is a partial update of a conversation. Nil fields are left
// untouched. Muted and Archived apply to the caller only; Pinned applies to
// everyone.
type Settings struct {
	Name        *string
	Description *string
	Muted       *bool
	Archived    *bool
	Pinned      *bool
}

func (s Settings) Empty() bool {
	return s.Name == nil && s.Description == nil && s.Muted == nil && s.Archived == nil && s.Pinned == nil
}

// ReadReceipt summarises a mark-as-read call.
type ReadReceipt struct {
	ChatID        string
	UserID        string
	MessagesRead  int
	UnreadCleared bool
}

// Changed reports whether the call wrote anything.
func (r ReadReceipt) Changed() bool { return r.MessagesRead > 0 || r.UnreadCleared }
