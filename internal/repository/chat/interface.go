package chat

import (
	"context"

	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/domain"
)

// ChatRepository handles conversation documents and their membership index.
type ChatRepository interface {
	Create(ctx context.Context, chat *domain.Chat) error
	FindByID(ctx context.Context, chatID string) (*domain.Chat, error)
	// FindByParticipant returns userID's chats, most recently updated first.
	FindByParticipant(ctx context.Context, userID string) ([]*domain.Chat, error)
	// Update writes chat back if its stored version still matches
	// chat.Version and bumps the version. A stale write returns
	// store.ErrConflict.
	Update(ctx context.Context, chat *domain.Chat) error
	// Delete removes chat if its stored version still matches chat.Version;
	// otherwise it returns store.ErrConflict.
	Delete(ctx context.Context, chat *domain.Chat) error
	WithTx(tx *gorm.DB) ChatRepository
}
