// File: internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iyunix/go-parley/internal/domain"
	"github.com/iyunix/go-parley/internal/repository"
	chatrepo "github.com/iyunix/go-parley/internal/repository/chat"
	messagerepo "github.com/iyunix/go-parley/internal/repository/message"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
	"github.com/iyunix/go-parley/internal/store"
)

const maxReactionLength = 32

// Recorder receives counters about chat traffic.
type Recorder interface {
	MessageSent(messageType string)
}

type noopRecorder struct{}

func (noopRecorder) MessageSent(string) {}

// ChatService is the only writer of conversation and message state. Every
// read-modify-write runs inside one unit of work so unread counters and the
// last-message summary never drift from the message log.
type ChatService struct {
	config   *chatservice.Config
	uow      *repository.UnitOfWork
	logger   Logger
	recorder Recorder
	clock    func() time.Time
	newID    func() string
}

type Option func(*ChatService)

func WithLogger(logger Logger) Option {
	return func(s *ChatService) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *ChatService) { s.recorder = recorder }
}

func WithClock(clock func() time.Time) Option {
	return func(s *ChatService) { s.clock = clock }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ChatService) { s.newID = newID }
}

func NewChatService(uow *repository.UnitOfWork, config *chatservice.Config, opts ...Option) (*ChatService, error) {
	if uow == nil {
		return nil, chatservice.NewValidationError("constructor", "unit of work is required")
	}
	if config == nil {
		config = chatservice.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, chatservice.NewValidationError("config", err.Error())
	}

	s := &ChatService{
		config:   config,
		uow:      uow,
		logger:   &NoOpLogger{},
		recorder: noopRecorder{},
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ chatservice.Service = (*ChatService)(nil)

// ===== CONVERSATIONS =====

func (s *ChatService) CreateChat(ctx context.Context, participants []string, chatType domain.ChatType, name, description, creatorID string) (*domain.Chat, error) {
	const op = "CreateChat"
	if strings.TrimSpace(creatorID) == "" {
		return nil, chatservice.NewAuthenticationError(op, "caller identity is required")
	}
	if err := s.validateNameAndDescription(op, &name, &description); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := domain.NewChat(s.newID(), participants, chatType, name, description, creatorID, s.clock())
	if err != nil {
		return nil, s.translate(op, err)
	}

	err = s.uow.Do(ctx, func(repos repository.Repositories) error {
		return repos.Chats.Create(ctx, chat)
	})
	if err != nil {
		return nil, s.translate(op, err)
	}

	s.logger.Info("chat created", "chat_id", chat.ID, "type", chat.Type, "participants", len(chat.Participants))
	return chat, nil
}

func (s *ChatService) GetChat(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	const op = "GetChat"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.uow.Read().Chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, s.translate(op, err)
	}
	if !chat.IsParticipant(userID) {
		return nil, chatservice.NewForbiddenError(op, userID, chatID, "not a participant in this chat")
	}
	return chat, nil
}

func (s *ChatService) GetUserChats(ctx context.Context, userID string) ([]*domain.Chat, error) {
	const op = "GetUserChats"
	if strings.TrimSpace(userID) == "" {
		return nil, chatservice.NewAuthenticationError(op, "caller identity is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chats, err := s.uow.Read().Chats.FindByParticipant(ctx, userID)
	if err != nil {
		return nil, s.translate(op, err)
	}
	return chats, nil
}

func (s *ChatService) UpdateChatSettings(ctx context.Context, chatID, userID string, settings chatservice.Settings) (*domain.Chat, error) {
	const op = "UpdateChatSettings"
	if settings.Empty() {
		return nil, chatservice.NewValidationError(op, "no settings provided")
	}
	if err := s.validateNameAndDescription(op, settings.Name, settings.Description); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated *domain.Chat
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		chat, err := s.loadChatForParticipant(ctx, repos, op, chatID, userID)
		if err != nil {
			return err
		}
		now := s.clock()

		if settings.Name != nil || settings.Description != nil {
			if !chat.IsGroup() {
				return chatservice.NewValidationError(op, "direct chats have no name or description")
			}
			if !chat.IsAdmin(userID) {
				return chatservice.NewForbiddenError(op, userID, chatID, "only group admins can rename a group")
			}
			if settings.Name != nil {
				if err := chat.SetName(*settings.Name, now); err != nil {
					return err
				}
			}
			if settings.Description != nil {
				if err := chat.SetDescription(*settings.Description, now); err != nil {
					return err
				}
			}
		}
		if settings.Muted != nil {
			if err := chat.SetMuted(userID, *settings.Muted, now); err != nil {
				return err
			}
		}
		if settings.Archived != nil {
			if err := chat.SetArchived(userID, *settings.Archived, now); err != nil {
				return err
			}
		}
		if settings.Pinned != nil {
			chat.SetPinned(*settings.Pinned, now)
		}

		if err := repos.Chats.Update(ctx, chat); err != nil {
			return err
		}
		updated = chat
		return nil
	})
	if err != nil {
		return nil, s.translate(op, err)
	}
	return updated, nil
}

// DeleteChat removes a conversation and its whole message log in one
// transaction. The returned chat is the state just before deletion.
func (s *ChatService) DeleteChat(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	const op = "DeleteChat"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var deleted *domain.Chat
	var removedMessages int64
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		chat, err := s.loadChatForParticipant(ctx, repos, op, chatID, userID)
		if err != nil {
			return err
		}
		if chat.IsGroup() && !chat.IsAdmin(userID) {
			return chatservice.NewForbiddenError(op, userID, chatID, "only group admins can delete a group")
		}
		// The versioned chat delete goes first so a send committed since the
		// load turns into a conflict instead of an orphaned message.
		if err := repos.Chats.Delete(ctx, chat); err != nil {
			return err
		}
		n, err := repos.Messages.DeleteByChatID(ctx, chatID)
		if err != nil {
			return err
		}
		deleted, removedMessages = chat, n
		return nil
	})
	if err != nil {
		return nil, s.translate(op, err)
	}

	s.logger.Info("chat deleted", "chat_id", chatID, "user_id", userID, "messages", removedMessages)
	return deleted, nil
}

func (s *ChatService) AddParticipant(ctx context.Context, chatID, actorID, userID string) (*domain.Chat, error) {
	const op = "AddParticipant"
	return s.mutateGroup(ctx, op, chatID, actorID, func(chat *domain.Chat, now time.Time) (bool, error) {
		if !chat.IsAdmin(actorID) {
			return false, chatservice.NewForbiddenError(op, actorID, chatID, "only group admins can add participants")
		}
		return chat.AddParticipant(userID, now)
	})
}

// RemoveParticipant lets an admin remove anyone and any participant leave.
func (s *ChatService) RemoveParticipant(ctx context.Context, chatID, actorID, userID string) (*domain.Chat, error) {
	const op = "RemoveParticipant"
	return s.mutateGroup(ctx, op, chatID, actorID, func(chat *domain.Chat, now time.Time) (bool, error) {
		if actorID != userID && !chat.IsAdmin(actorID) {
			return false, chatservice.NewForbiddenError(op, actorID, chatID, "only group admins can remove other participants")
		}
		if err := chat.RemoveParticipant(userID, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *ChatService) SetAdmin(ctx context.Context, chatID, actorID, userID string, admin bool) (*domain.Chat, error) {
	const op = "SetAdmin"
	return s.mutateGroup(ctx, op, chatID, actorID, func(chat *domain.Chat, now time.Time) (bool, error) {
		if !chat.IsAdmin(actorID) {
			return false, chatservice.NewForbiddenError(op, actorID, chatID, "only group admins can change admins")
		}
		if admin {
			return chat.AddAdmin(userID, now)
		}
		return chat.RemoveAdmin(userID, now)
	})
}

// mutateGroup loads a group the actor belongs to, applies fn and writes the
// chat back when fn reports a change.
func (s *ChatService) mutateGroup(ctx context.Context, op, chatID, actorID string, fn func(chat *domain.Chat, now time.Time) (bool, error)) (*domain.Chat, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result *domain.Chat
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		chat, err := s.loadChatForParticipant(ctx, repos, op, chatID, actorID)
		if err != nil {
			return err
		}
		if !chat.IsGroup() {
			return chatservice.NewValidationError(op, "membership of direct chats is fixed")
		}
		changed, err := fn(chat, s.clock())
		if err != nil {
			return err
		}
		if changed {
			if err := repos.Chats.Update(ctx, chat); err != nil {
				return err
			}
		}
		result = chat
		return nil
	})
	if err != nil {
		return nil, s.translate(op, err)
	}
	return result, nil
}

// ===== MESSAGES =====

// SendMessage stores a message and, in the same transaction, refreshes the
// chat's last-message summary and bumps every other non-muted participant's
// unread counter.
func (s *ChatService) SendMessage(ctx context.Context, chatID, senderID string, payload domain.Payload) (*domain.Message, error) {
	const op = "SendMessage"
	if payload == nil {
		return nil, chatservice.NewValidationError(op, "message payload is required")
	}
	if utf8.RuneCountInString(payload.Content()) > s.config.MaxContentLength {
		return nil, chatservice.NewValidationError(op, "message content is too long")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var sent *domain.Message
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		chat, err := s.loadChatForParticipant(ctx, repos, op, chatID, senderID)
		if err != nil {
			return err
		}
		msg := domain.NewMessage(s.newID(), chatID, senderID, payload, s.clock())
		if err := repos.Messages.Create(ctx, msg); err != nil {
			return err
		}
		chat.ApplyMessage(msg)
		if err := repos.Chats.Update(ctx, chat); err != nil {
			return err
		}
		sent = msg
		return nil
	})
	if err != nil {
		return nil, s.translate(op, err)
	}

	s.recorder.MessageSent(string(sent.Type))
	s.logger.Debug("message sent", "chat_id", chatID, "message_id", sent.ID, "type", sent.Type)
	return sent, nil
}

// GetChatMessages returns one page of history, newest first. before is the
// id of the oldest message the caller already holds.
func (s *ChatService) GetChatMessages(ctx context.Context, chatID, userID string, limit int, before string) ([]*domain.Message, error) {
	const op = "GetChatMessages"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	repos := s.uow.Read()
	if _, err := s.loadChatForParticipant(ctx, repos, op, chatID, userID); err != nil {
		return nil, s.translate(op, err)
	}
	messages, err := repos.Messages.FindPage(ctx, chatID, s.config.PageSize(limit), before)
	if err != nil {
		return nil, s.translate(op, err)
	}
	return messages, nil
}

// MarkMessagesAsRead clears userID's unread counter and adds userID to the
// read set of every live message from someone else. Repeating the call
// writes nothing.
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, chatID, userID string) (chatservice.ReadReceipt, error) {
	const op = "MarkMessagesAsRead"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var receipt chatservice.ReadReceipt
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		receipt = chatservice.ReadReceipt{ChatID: chatID, UserID: userID}

		chat, err := s.loadChatForParticipant(ctx, repos, op, chatID, userID)
		if err != nil {
			return err
		}
		unread, err := repos.Messages.FindUnread(ctx, chatID, userID)
		if err != nil {
			return err
		}
		for _, msg := range unread {
			changed, err := msg.MarkRead(userID)
			if err != nil || !changed {
				continue
			}
			if err := repos.Messages.Update(ctx, msg); err != nil {
				return err
			}
			receipt.MessagesRead++
		}
		if chat.ResetUnread(userID) {
			if err := repos.Chats.Update(ctx, chat); err != nil {
				return err
			}
			receipt.UnreadCleared = true
		}
		return nil
	})
	if err != nil {
		return chatservice.ReadReceipt{}, s.translate(op, err)
	}
	return receipt, nil
}

func (s *ChatService) EditMessage(ctx context.Context, messageID, userID, content string) (*domain.Message, error) {
	const op = "EditMessage"
	if strings.TrimSpace(content) == "" {
		return nil, chatservice.NewValidationError(op, "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > s.config.MaxContentLength {
		return nil, chatservice.NewValidationError(op, "message content is too long")
	}
	return s.mutateOwnMessage(ctx, op, messageID, userID, func(msg *domain.Message, now time.Time) error {
		return msg.Edit(content, now)
	})
}

// DeleteMessage tombstones a message. The chat's last-message summary is a
// copy taken at send time and is left as is.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	const op = "DeleteMessage"
	return s.mutateOwnMessage(ctx, op, messageID, userID, func(msg *domain.Message, now time.Time) error {
		return msg.Delete(now)
	})
}

func (s *ChatService) mutateOwnMessage(ctx context.Context, op, messageID, userID string, fn func(msg *domain.Message, now time.Time) error) (*domain.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result *domain.Message
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		msg, err := repos.Messages.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		if msg.SenderID != userID {
			return &chatservice.ChatError{
				Type:      chatservice.ErrTypeForbidden,
				Operation: op,
				Message:   "only the sender can change this message",
				ChatID:    msg.ChatID,
				MessageID: messageID,
				UserID:    userID,
			}
		}
		if err := fn(msg, s.clock()); err != nil {
			return err
		}
		if err := repos.Messages.Update(ctx, msg); err != nil {
			return err
		}
		result = msg
		return nil
	})
	if err != nil {
		return nil, s.translate(op, err)
	}
	return result, nil
}

func (s *ChatService) AddReaction(ctx context.Context, messageID, userID, reaction string) (*domain.Message, error) {
	const op = "AddReaction"
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return nil, chatservice.NewValidationError(op, "reaction cannot be empty")
	}
	if utf8.RuneCountInString(reaction) > maxReactionLength {
		return nil, chatservice.NewValidationError(op, "reaction is too long")
	}
	return s.react(ctx, op, messageID, userID, func(msg *domain.Message) (bool, error) {
		if err := msg.SetReaction(userID, reaction); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *ChatService) RemoveReaction(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	const op = "RemoveReaction"
	return s.react(ctx, op, messageID, userID, func(msg *domain.Message) (bool, error) {
		return msg.RemoveReaction(userID)
	})
}

func (s *ChatService) react(ctx context.Context, op, messageID, userID string, fn func(msg *domain.Message) (bool, error)) (*domain.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result *domain.Message
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		msg, err := repos.Messages.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		if _, err := s.loadChatForParticipant(ctx, repos, op, msg.ChatID, userID); err != nil {
			return err
		}
		changed, err := fn(msg)
		if err != nil {
			return err
		}
		if changed {
			if err := repos.Messages.Update(ctx, msg); err != nil {
				return err
			}
		}
		result = msg
		return nil
	})
	if err != nil {
		return nil, s.translate(op, err)
	}
	return result, nil
}

func (s *ChatService) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.uow.Ping(ctx); err != nil {
		return chatservice.NewInternalError("HealthCheck", err)
	}
	return nil
}

// ===== HELPERS =====

func (s *ChatService) loadChatForParticipant(ctx context.Context, repos repository.Repositories, op, chatID, userID string) (*domain.Chat, error) {
	chat, err := repos.Chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(userID) {
		return nil, chatservice.NewForbiddenError(op, userID, chatID, "not a participant in this chat")
	}
	return chat, nil
}

func (s *ChatService) validateNameAndDescription(op string, name, description *string) error {
	if name != nil && utf8.RuneCountInString(strings.TrimSpace(*name)) > s.config.MaxNameLength {
		return chatservice.NewValidationError(op, "chat name is too long")
	}
	if description != nil && utf8.RuneCountInString(strings.TrimSpace(*description)) > s.config.MaxDescription {
		return chatservice.NewValidationError(op, "chat description is too long")
	}
	return nil
}

func (s *ChatService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// translate turns repository, store and domain errors into ChatErrors.
// Unexpected causes are logged here and hidden from callers.
func (s *ChatService) translate(op string, err error) error {
	var ce *chatservice.ChatError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, chatrepo.ErrChatNotFound):
		return chatservice.NewNotFoundError(op, "chat not found", err)
	case errors.Is(err, messagerepo.ErrMessageNotFound):
		return chatservice.NewNotFoundError(op, "message not found", err)
	case errors.Is(err, messagerepo.ErrCursorNotFound):
		return chatservice.NewValidationError(op, "unknown pagination cursor")
	case errors.Is(err, domain.ErrMessageDeleted):
		return chatservice.NewConflictError(op, "message has been deleted", err)
	case errors.Is(err, domain.ErrLastAdmin),
		errors.Is(err, domain.ErrLastParticipant):
		return chatservice.NewConflictError(op, err.Error(), err)
	case errors.Is(err, domain.ErrInvalidChatType),
		errors.Is(err, domain.ErrDirectChatSize),
		errors.Is(err, domain.ErrGroupNameRequired),
		errors.Is(err, domain.ErrEmptyParticipant),
		errors.Is(err, domain.ErrCreatorNotMember),
		errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrNotGroup),
		errors.Is(err, domain.ErrDirectChatNoSettings),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrEmptyReaction):
		return chatservice.NewValidationError(op, err.Error())
	case store.IsConflict(err):
		s.logger.Warn("transaction conflict not resolved by retries", "operation", op, "error", err)
		return chatservice.NewConflictError(op, "the chat was modified concurrently, please retry", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return chatservice.NewInternalError(op, err)
	}

	s.logger.Error("chat operation failed", "operation", op, "error", err)
	return chatservice.NewInternalError(op, err)
}
