// File: internal/domain/message.go
package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// MessageType is the wire name of a payload variant.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

var (
	ErrEmptyContent         = errors.New("message content cannot be empty")
	ErrUnknownMessageType   = errors.New("message type must be text, image or file")
	ErrIncompleteAttachment = errors.New("file messages require url, name, mime type and size")
	ErrEmptyReaction        = errors.New("reaction cannot be empty")
	ErrMessageDeleted       = errors.New("message has been deleted")
)

// Attachment describes the file carried by an image or file message.
// All four fields are required together.
type Attachment struct {
	URL      string `json:"fileUrl"`
	Name     string `json:"fileName"`
	MimeType string `json:"fileType"`
	Size     int64  `json:"fileSize"`
}

func (a Attachment) validate() error {
	if strings.TrimSpace(a.URL) == "" || strings.TrimSpace(a.Name) == "" ||
		strings.TrimSpace(a.MimeType) == "" || a.Size <= 0 {
		return ErrIncompleteAttachment
	}
	return nil
}

// Payload is the content of a new message. The only implementations are
// TextPayload and FilePayload; both are built through their constructors so
// an invalid variant cannot exist.
type Payload interface {
	MessageType() MessageType
	Content() string
	Attachment() *Attachment
	sealed()
}

type TextPayload struct {
	text string
}

func NewTextPayload(text string) (TextPayload, error) {
	if strings.TrimSpace(text) == "" {
		return TextPayload{}, ErrEmptyContent
	}
	return TextPayload{text: text}, nil
}

func (p TextPayload) MessageType() MessageType { return MessageTypeText }
func (p TextPayload) Content() string          { return p.text }
func (p TextPayload) Attachment() *Attachment  { return nil }
func (TextPayload) sealed()                    {}

// FilePayload is an image or file message with an optional caption.
type FilePayload struct {
	kind    MessageType
	caption string
	file    Attachment
}

func NewFilePayload(kind MessageType, caption string, file Attachment) (FilePayload, error) {
	if kind != MessageTypeImage && kind != MessageTypeFile {
		return FilePayload{}, ErrUnknownMessageType
	}
	if err := file.validate(); err != nil {
		return FilePayload{}, err
	}
	return FilePayload{kind: kind, caption: caption, file: file}, nil
}

func (p FilePayload) MessageType() MessageType { return p.kind }
func (p FilePayload) Content() string          { return p.caption }
func (FilePayload) sealed()                    {}

func (p FilePayload) Attachment() *Attachment {
	f := p.file
	return &f
}

// NewPayload picks the variant for a wire-level message type. An empty type
// means text.
func NewPayload(kind MessageType, content string, file *Attachment) (Payload, error) {
	switch kind {
	case "", MessageTypeText:
		return NewTextPayload(content)
	case MessageTypeImage, MessageTypeFile:
		if file == nil {
			return nil, ErrIncompleteAttachment
		}
		return NewFilePayload(kind, content, *file)
	default:
		return nil, ErrUnknownMessageType
	}
}

// Message represents a single message within a chat.
type Message struct {
	ID        string            `json:"id"`
	ChatID    string            `json:"conversationId"`
	SenderID  string            `json:"senderId"`
	Content   *string           `json:"content"`
	Type      MessageType       `json:"type"`
	File      *Attachment       `json:"file,omitempty"`
	Edited    bool              `json:"edited"`
	EditedAt  *time.Time        `json:"editedAt,omitempty"`
	Deleted   bool              `json:"deleted"`
	DeletedAt *time.Time        `json:"deletedAt,omitempty"`
	Reactions map[string]string `json:"reactions"`
	ReadBy    []string          `json:"readBy"`
	CreatedAt time.Time         `json:"createdAt"`

	Version int64 `json:"-"`
}

func NewMessage(id, chatID, senderID string, payload Payload, now time.Time) *Message {
	text := payload.Content()
	return &Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   &text,
		Type:      payload.MessageType(),
		File:      payload.Attachment(),
		Reactions: make(map[string]string),
		ReadBy:    []string{},
		CreatedAt: now,
	}
}

// MessageState is the lifecycle position of a message.
type MessageState string

const (
	MessageStateActive  MessageState = "active"
	MessageStateEdited  MessageState = "edited"
	MessageStateDeleted MessageState = "deleted"
)

func (m *Message) State() MessageState {
	switch {
	case m.Deleted:
		return MessageStateDeleted
	case m.Edited:
		return MessageStateEdited
	default:
		return MessageStateActive
	}
}

func (m *Message) Edit(content string, now time.Time) error {
	if m.Deleted {
		return ErrMessageDeleted
	}
	if strings.TrimSpace(content) == "" && m.Type == MessageTypeText {
		return ErrEmptyContent
	}
	m.Content = &content
	m.Edited = true
	m.EditedAt = &now
	return nil
}

// Delete turns the message into a tombstone. There is no way back.
func (m *Message) Delete(now time.Time) error {
	if m.Deleted {
		return ErrMessageDeleted
	}
	m.Deleted = true
	m.DeletedAt = &now
	m.Content = nil
	return nil
}

// SetReaction stores userID's reaction, replacing any earlier one.
func (m *Message) SetReaction(userID, label string) error {
	if m.Deleted {
		return ErrMessageDeleted
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyReaction
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string]string)
	}
	m.Reactions[userID] = label
	return nil
}

// RemoveReaction reports whether userID had a reaction to remove.
func (m *Message) RemoveReaction(userID string) (bool, error) {
	if m.Deleted {
		return false, ErrMessageDeleted
	}
	if _, ok := m.Reactions[userID]; !ok {
		return false, nil
	}
	delete(m.Reactions, userID)
	return true, nil
}

func (m *Message) IsReadBy(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}

// MarkRead adds userID to the read set. The set only grows.
func (m *Message) MarkRead(userID string) (bool, error) {
	if m.Deleted {
		return false, ErrMessageDeleted
	}
	if m.IsReadBy(userID) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true, nil
}
