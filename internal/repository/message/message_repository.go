// File: internal/repository/message/message_repository.go
package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/domain"
	"github.com/iyunix/go-parley/internal/store"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrCursorNotFound means the pagination cursor is not a message of the
	// requested chat.
	ErrCursorNotFound = errors.New("cursor message not found in chat")
)

type Record struct {
	ID        string                                 `gorm:"primaryKey;size:36"`
	ChatID    string                                 `gorm:"size:36;not null;index:idx_messages_chat_created,priority:1"`
	SenderID  string                                 `gorm:"size:64;not null"`
	Content   *string                                `gorm:"type:text"`
	Type      string                                 `gorm:"size:16;not null"`
	File      datatypes.JSONType[*domain.Attachment] `gorm:"not null"`
	Edited    bool                                   `gorm:"not null;default:false"`
	EditedTS  *int64                                 `gorm:"column:edited_ts"`
	Deleted   bool                                   `gorm:"not null;default:false"`
	DeletedTS *int64                                 `gorm:"column:deleted_ts"`
	Reactions datatypes.JSONType[map[string]string]  `gorm:"not null"`
	ReadBy    datatypes.JSONSlice[string]            `gorm:"not null"`
	CreatedTS int64                                  `gorm:"not null;index:idx_messages_chat_created,priority:2"`
	Version   int64                                  `gorm:"not null;default:1"`
}

func (Record) TableName() string { return "messages" }

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) WithTx(tx *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: tx}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if message == nil || message.ID == "" || message.ChatID == "" {
		return errors.New("invalid message")
	}
	message.Version = 1
	if err := r.db.WithContext(ctx).Create(toRecord(message)).Error; err != nil {
		return fmt.Errorf("create message in chat %s: %w", message.ChatID, err)
	}
	return nil
}

func (r *gormMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	if messageID == "" {
		return nil, ErrMessageNotFound
	}
	var rec Record
	err := r.db.WithContext(ctx).Where("id = ?", messageID).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message %s: %w", messageID, err)
	}
	return toDomain(&rec), nil
}

func (r *gormMessageRepository) FindPage(ctx context.Context, chatID string, limit int, before string) ([]*domain.Message, error) {
	if limit <= 0 {
		return []*domain.Message{}, nil
	}
	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID)

	if before != "" {
		var cursor Record
		err := r.db.WithContext(ctx).
			Select("id", "created_ts").
			Where("id = ? AND chat_id = ?", before, chatID).
			Take(&cursor).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCursorNotFound
			}
			return nil, fmt.Errorf("load cursor %s: %w", before, err)
		}
		query = query.Where("(created_ts < ? OR (created_ts = ? AND id < ?))",
			cursor.CreatedTS, cursor.CreatedTS, cursor.ID)
	}

	var recs []Record
	if err := query.Order("created_ts DESC, id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("page messages of chat %s: %w", chatID, err)
	}
	return toDomainSlice(recs), nil
}

func (r *gormMessageRepository) FindUnread(ctx context.Context, chatID, userID string) ([]*domain.Message, error) {
	var recs []Record
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND sender_id <> ? AND deleted = ?", chatID, userID, false).
		Order("created_ts ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("find unread messages of chat %s: %w", chatID, err)
	}

	unread := make([]*domain.Message, 0, len(recs))
	for i := range recs {
		m := toDomain(&recs[i])
		if !m.IsReadBy(userID) {
			unread = append(unread, m)
		}
	}
	return unread, nil
}

func (r *gormMessageRepository) Update(ctx context.Context, message *domain.Message) error {
	rec := toRecord(message)
	result := r.db.WithContext(ctx).Model(&Record{}).
		Where("id = ? AND version = ?", message.ID, message.Version).
		Updates(map[string]interface{}{
			"content":    rec.Content,
			"edited":     rec.Edited,
			"edited_ts":  rec.EditedTS,
			"deleted":    rec.Deleted,
			"deleted_ts": rec.DeletedTS,
			"reactions":  rec.Reactions,
			"read_by":    rec.ReadBy,
			"version":    gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("update message %s: %w", message.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update message %s at version %d: %w", message.ID, message.Version, store.ErrConflict)
	}
	message.Version++
	return nil
}

func (r *gormMessageRepository) CountByChatID(ctx context.Context, chatID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Record{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages of chat %s: %w", chatID, err)
	}
	return count, nil
}

func (r *gormMessageRepository) DeleteByChatID(ctx context.Context, chatID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&Record{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete messages of chat %s: %w", chatID, result.Error)
	}
	return result.RowsAffected, nil
}

func toRecord(m *domain.Message) *Record {
	return &Record{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      string(m.Type),
		File:      datatypes.NewJSONType(m.File),
		Edited:    m.Edited,
		EditedTS:  unixNano(m.EditedAt),
		Deleted:   m.Deleted,
		DeletedTS: unixNano(m.DeletedAt),
		Reactions: datatypes.NewJSONType(m.Reactions),
		ReadBy:    datatypes.NewJSONSlice(m.ReadBy),
		CreatedTS: m.CreatedAt.UnixNano(),
		Version:   m.Version,
	}
}

func toDomain(rec *Record) *domain.Message {
	m := &domain.Message{
		ID:        rec.ID,
		ChatID:    rec.ChatID,
		SenderID:  rec.SenderID,
		Content:   rec.Content,
		Type:      domain.MessageType(rec.Type),
		File:      rec.File.Data(),
		Edited:    rec.Edited,
		EditedAt:  fromUnixNano(rec.EditedTS),
		Deleted:   rec.Deleted,
		DeletedAt: fromUnixNano(rec.DeletedTS),
		Reactions: rec.Reactions.Data(),
		ReadBy:    []string(rec.ReadBy),
		CreatedAt: time.Unix(0, rec.CreatedTS).UTC(),
		Version:   rec.Version,
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string]string)
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{}
	}
	return m
}

func toDomainSlice(recs []Record) []*domain.Message {
	out := make([]*domain.Message, 0, len(recs))
	for i := range recs {
		out = append(out, toDomain(&recs[i]))
	}
	return out
}

func unixNano(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixNano()
	return &v
}

func fromUnixNano(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(0, *v).UTC()
	return &t
}
