// File: internal/repository/repository.go
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/repository/chat"
	"github.com/iyunix/go-parley/internal/repository/message"
	"github.com/iyunix/go-parley/internal/store"
)

// AutoMigrate creates or updates every table the chat subsystem owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&chat.Record{}, &chat.Member{}, &message.Record{})
}

// Repositories groups the repositories bound to one database handle,
// either the pool or a running transaction.
type Repositories struct {
	Chats    chat.ChatRepository
	Messages message.MessageRepository
}

// UnitOfWork runs read-modify-write sequences atomically over both
// repositories.
type UnitOfWork struct {
	tx       *store.Transactor
	chats    chat.ChatRepository
	messages message.MessageRepository
}

func NewUnitOfWork(tx *store.Transactor) *UnitOfWork {
	return &UnitOfWork{
		tx:       tx,
		chats:    chat.NewChatRepository(tx.DB()),
		messages: message.NewMessageRepository(tx.DB()),
	}
}

// Do runs fn in a transaction. fn may be invoked more than once when the
// transaction conflicts, so it must not have side effects outside repos.
func (u *UnitOfWork) Do(ctx context.Context, fn func(repos Repositories) error) error {
	return u.tx.RunInTransaction(ctx, func(tx *gorm.DB) error {
		return fn(Repositories{
			Chats:    u.chats.WithTx(tx),
			Messages: u.messages.WithTx(tx),
		})
	})
}

// Read returns repositories for snapshot reads outside a transaction.
func (u *UnitOfWork) Read() Repositories {
	return Repositories{Chats: u.chats, Messages: u.messages}
}

// Ping checks that the database answers.
func (u *UnitOfWork) Ping(ctx context.Context) error {
	sqlDB, err := u.tx.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
