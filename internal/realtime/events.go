package realtime

import (
	"encoding/json"

	"github.com/iyunix/go-parley/internal/domain"
)

// Inbound events.
const (
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
)

// Outbound events.
const (
	EventNewMessage     = "new_message"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventError          = "error"
	EventMessageUpdated = "message_updated"
	EventMessagesRead   = "messages_read"
	EventChatUpdated    = "chat_updated"
	EventChatDeleted    = "chat_deleted"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SendMessageRequest struct {
	ChatID  string             `json:"chatId"`
	Content string             `json:"content"`
	Type    domain.MessageType `json:"type,omitempty"`
	File    *domain.Attachment `json:"file,omitempty"`
}

type TypingRequest struct {
	ChatID string `json:"chatId"`
}

type MessageEvent struct {
	ChatID  string          `json:"chatId"`
	Message *domain.Message `json:"message"`
}

type TypingEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type ReadEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type ChatEvent struct {
	Chat *domain.Chat `json:"chat"`
}

type ChatDeletedEvent struct {
	ChatID string `json:"chatId"`
}

// ErrorEvent reports a failed inbound event. The connection stays open.
type ErrorEvent struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
