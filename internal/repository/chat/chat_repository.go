// File: internal/repository/chat/chat_repository.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iyunix/go-parley/internal/domain"
	"github.com/iyunix/go-parley/internal/store"
)

var ErrChatNotFound = errors.New("chat not found")

// Record is the stored shape of a conversation. Per-participant state lives
// in JSON columns; timestamps are unix nanoseconds so ordering is exact.
type Record struct {
	ID           string                                  `gorm:"primaryKey;size:36"`
	Type         string                                  `gorm:"size:16;not null"`
	Name         string                                  `gorm:"size:255"`
	Description  string                                  `gorm:"size:1024"`
	CreatedBy    string                                  `gorm:"size:64"`
	Participants datatypes.JSONSlice[string]             `gorm:"not null"`
	Admins       datatypes.JSONSlice[string]             `gorm:"not null"`
	LastMessage  datatypes.JSONType[*domain.LastMessage] `gorm:"not null"`
	UnreadCounts datatypes.JSONType[map[string]int]      `gorm:"not null"`
	Muted        datatypes.JSONType[map[string]bool]     `gorm:"not null"`
	Archived     datatypes.JSONType[map[string]bool]     `gorm:"not null"`
	Pinned       bool                                    `gorm:"not null;default:false"`
	CreatedTS    int64                                   `gorm:"not null"`
	UpdatedTS    int64                                   `gorm:"not null;index:idx_chats_updated"`
	Version      int64                                   `gorm:"not null;default:1"`
}

func (Record) TableName() string { return "chats" }

// Member indexes participants so a user's chats can be found without
// scanning JSON.
type Member struct {
	ChatID string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"primaryKey;size:64;index:idx_chat_members_user"`
}

func (Member) TableName() string { return "chat_members" }

type gormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) WithTx(tx *gorm.DB) ChatRepository {
	return &gormChatRepository{db: tx}
}

func (r *gormChatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	if chat == nil || chat.ID == "" {
		return errors.New("invalid chat")
	}
	chat.Version = 1
	rec := toRecord(chat)
	db := r.db.WithContext(ctx)
	if err := db.Create(rec).Error; err != nil {
		return fmt.Errorf("create chat %s: %w", chat.ID, err)
	}
	if err := r.syncMembers(db, chat.ID, chat.Participants); err != nil {
		return err
	}
	return nil
}

func (r *gormChatRepository) FindByID(ctx context.Context, chatID string) (*domain.Chat, error) {
	if chatID == "" {
		return nil, ErrChatNotFound
	}
	var rec Record
	err := r.db.WithContext(ctx).Where("id = ?", chatID).Take(&rec).Error
	return r.handleFindError(err, &rec, "FindByID")
}

func (r *gormChatRepository) FindByParticipant(ctx context.Context, userID string) ([]*domain.Chat, error) {
	var recs []Record
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ?", userID).
		Order("chats.updated_ts DESC, chats.id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("find chats for user %s: %w", userID, err)
	}

	chats := make([]*domain.Chat, 0, len(recs))
	for i := range recs {
		chats = append(chats, toDomain(&recs[i]))
	}
	return chats, nil
}

func (r *gormChatRepository) Update(ctx context.Context, chat *domain.Chat) error {
	rec := toRecord(chat)
	db := r.db.WithContext(ctx)
	result := db.Model(&Record{}).
		Where("id = ? AND version = ?", chat.ID, chat.Version).
		Updates(map[string]interface{}{
			"name":          rec.Name,
			"description":   rec.Description,
			"participants":  rec.Participants,
			"admins":        rec.Admins,
			"last_message":  rec.LastMessage,
			"unread_counts": rec.UnreadCounts,
			"muted":         rec.Muted,
			"archived":      rec.Archived,
			"pinned":        rec.Pinned,
			"updated_ts":    rec.UpdatedTS,
			"version":       gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("update chat %s: %w", chat.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update chat %s at version %d: %w", chat.ID, chat.Version, store.ErrConflict)
	}
	chat.Version++
	return r.syncMembers(db, chat.ID, chat.Participants)
}

func (r *gormChatRepository) Delete(ctx context.Context, chat *domain.Chat) error {
	db := r.db.WithContext(ctx)
	result := db.Where("id = ? AND version = ?", chat.ID, chat.Version).Delete(&Record{})
	if result.Error != nil {
		return fmt.Errorf("delete chat %s: %w", chat.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete chat %s at version %d: %w", chat.ID, chat.Version, store.ErrConflict)
	}
	if err := db.Where("chat_id = ?", chat.ID).Delete(&Member{}).Error; err != nil {
		return fmt.Errorf("delete members of chat %s: %w", chat.ID, err)
	}
	return nil
}

// syncMembers makes the membership index match participants.
func (r *gormChatRepository) syncMembers(db *gorm.DB, chatID string, participants []string) error {
	if err := db.Where("chat_id = ? AND user_id NOT IN ?", chatID, participants).
		Delete(&Member{}).Error; err != nil {
		return fmt.Errorf("prune members of chat %s: %w", chatID, err)
	}
	members := make([]Member, 0, len(participants))
	for _, p := range participants {
		members = append(members, Member{ChatID: chatID, UserID: p})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
		return fmt.Errorf("index members of chat %s: %w", chatID, err)
	}
	return nil
}

func (r *gormChatRepository) handleFindError(err error, rec *Record, operation string) (*domain.Chat, error) {
	if err == nil {
		return toDomain(rec), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	return nil, fmt.Errorf("chat %s: %w", operation, err)
}

func toRecord(c *domain.Chat) *Record {
	return &Record{
		ID:           c.ID,
		Type:         string(c.Type),
		Name:         c.Name,
		Description:  c.Description,
		CreatedBy:    c.CreatedBy,
		Participants: datatypes.NewJSONSlice(c.Participants),
		Admins:       datatypes.NewJSONSlice(c.Admins),
		LastMessage:  datatypes.NewJSONType(c.LastMessage),
		UnreadCounts: datatypes.NewJSONType(c.UnreadCounts),
		Muted:        datatypes.NewJSONType(c.Muted),
		Archived:     datatypes.NewJSONType(c.Archived),
		Pinned:       c.Pinned,
		CreatedTS:    c.CreatedAt.UnixNano(),
		UpdatedTS:    c.UpdatedAt.UnixNano(),
		Version:      c.Version,
	}
}

func toDomain(rec *Record) *domain.Chat {
	c := &domain.Chat{
		ID:           rec.ID,
		Type:         domain.ChatType(rec.Type),
		Name:         rec.Name,
		Description:  rec.Description,
		CreatedBy:    rec.CreatedBy,
		Participants: []string(rec.Participants),
		Admins:       []string(rec.Admins),
		LastMessage:  rec.LastMessage.Data(),
		UnreadCounts: rec.UnreadCounts.Data(),
		Muted:        rec.Muted.Data(),
		Archived:     rec.Archived.Data(),
		Pinned:       rec.Pinned,
		CreatedAt:    time.Unix(0, rec.CreatedTS).UTC(),
		UpdatedAt:    time.Unix(0, rec.UpdatedTS).UTC(),
		Version:      rec.Version,
	}
	if c.Participants == nil {
		c.Participants = []string{}
	}
	if c.Admins == nil {
		c.Admins = []string{}
	}
	if c.UnreadCounts == nil {
		c.UnreadCounts = make(map[string]int)
	}
	if c.Muted == nil {
		c.Muted = make(map[string]bool)
	}
	if c.Archived == nil {
		c.Archived = make(map[string]bool)
	}
	return c
}
