// File: internal/services/chat/interface.go
package chat

import (
	"context"

	"github.com/iyunix/go-parley/internal/domain"
)

// ConversationProvider creates, lists and configures conversations.
type ConversationProvider interface {
	CreateChat(ctx context.Context, participants []string, chatType domain.ChatType, name, description, creatorID string) (*domain.Chat, error)
	GetChat(ctx context.Context, chatID, userID string) (*domain.Chat, error)
	GetUserChats(ctx context.Context, userID string) ([]*domain.Chat, error)
	UpdateChatSettings(ctx context.Context, chatID, userID string, settings Settings) (*domain.Chat, error)
	DeleteChat(ctx context.Context, chatID, userID string) (*domain.Chat, error)
	AddParticipant(ctx context.Context, chatID, actorID, userID string) (*domain.Chat, error)
	RemoveParticipant(ctx context.Context, chatID, actorID, userID string) (*domain.Chat, error)
	SetAdmin(ctx context.Context, chatID, actorID, userID string, admin bool) (*domain.Chat, error)
}

// MessageProvider handles message traffic inside a conversation.
type MessageProvider interface {
	SendMessage(ctx context.Context, chatID, senderID string, payload domain.Payload) (*domain.Message, error)
	GetChatMessages(ctx context.Context, chatID, userID string, limit int, before string) ([]*domain.Message, error)
	MarkMessagesAsRead(ctx context.Context, chatID, userID string) (ReadReceipt, error)
	EditMessage(ctx context.Context, messageID, userID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID, userID string) (*domain.Message, error)
	AddReaction(ctx context.Context, messageID, userID, reaction string) (*domain.Message, error)
	RemoveReaction(ctx context.Context, messageID, userID string) (*domain.Message, error)
}

// Service combines all chat capabilities
type Service interface {
	ConversationProvider
	MessageProvider
	HealthCheck(ctx context.Context) error
}
