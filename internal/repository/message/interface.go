package message

import (
	"context"

	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// FindPage returns up to limit messages of chatID, newest first. When
	// before is set only messages older than that message are returned.
	FindPage(ctx context.Context, chatID string, limit int, before string) ([]*domain.Message, error)
	// FindUnread returns the live messages of chatID that userID neither
	// sent nor has read yet.
	FindUnread(ctx context.Context, chatID, userID string) ([]*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	CountByChatID(ctx context.Context, chatID string) (int64, error)
	DeleteByChatID(ctx context.Context, chatID string) (int64, error)
	WithTx(tx *gorm.DB) MessageRepository
}
