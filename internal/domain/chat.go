// File: internal/domain/chat.go
package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ChatType distinguishes one-to-one conversations from groups.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

var (
	ErrInvalidChatType      = errors.New("chat type must be direct or group")
	ErrDirectChatSize       = errors.New("direct chats must have exactly two participants")
	ErrGroupNameRequired    = errors.New("group chats require a name")
	ErrEmptyParticipant     = errors.New("participant id cannot be empty")
	ErrCreatorNotMember     = errors.New("creator must be a participant of a direct chat")
	ErrNotParticipant       = errors.New("user is not a participant in this chat")
	ErrNotGroup             = errors.New("operation is only available for group chats")
	ErrLastAdmin            = errors.New("a group must keep at least one admin")
	ErrLastParticipant      = errors.New("a chat must keep at least one participant")
	ErrDirectChatNoSettings = errors.New("direct chats have no name or description")
)

// LastMessage is a value copy of the newest message, taken at send time.
// It deliberately carries no message id.
type LastMessage struct {
	Content   *string     `json:"content"`
	SenderID  string      `json:"senderId"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

// Chat represents a single conversation thread and its per-participant state.
type Chat struct {
	ID           string          `json:"id"`
	Participants []string        `json:"participants"`
	Type         ChatType        `json:"type"`
	Name         string          `json:"name,omitempty"`
	Description  string          `json:"description,omitempty"`
	CreatedBy    string          `json:"createdBy,omitempty"`
	Admins       []string        `json:"admins"`
	LastMessage  *LastMessage    `json:"lastMessage"`
	UnreadCounts map[string]int  `json:"unreadCounts"`
	Pinned       bool            `json:"pinned"`
	Muted        map[string]bool `json:"muted"`
	Archived     map[string]bool `json:"archived"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`

	// Version is the optimistic concurrency token of the stored document.
	Version int64 `json:"-"`
}

// NewChat builds a conversation with zeroed per-participant state.
// Duplicate participant ids are collapsed. Group creators are added to the
// participant set when missing and become the first admin.
func NewChat(id string, participants []string, chatType ChatType, name, description, creator string, now time.Time) (*Chat, error) {
	if chatType == "" {
		chatType = ChatTypeDirect
	}
	if chatType != ChatTypeDirect && chatType != ChatTypeGroup {
		return nil, ErrInvalidChatType
	}

	members := make([]string, 0, len(participants)+1)
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, ErrEmptyParticipant
		}
		if !slices.Contains(members, p) {
			members = append(members, p)
		}
	}

	chat := &Chat{
		ID:           id,
		Type:         chatType,
		CreatedBy:    creator,
		Admins:       []string{},
		UnreadCounts: make(map[string]int),
		Muted:        make(map[string]bool),
		Archived:     make(map[string]bool),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	switch chatType {
	case ChatTypeDirect:
		if len(members) != 2 {
			return nil, ErrDirectChatSize
		}
		if creator != "" && !slices.Contains(members, creator) {
			return nil, ErrCreatorNotMember
		}
	case ChatTypeGroup:
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ErrGroupNameRequired
		}
		if strings.TrimSpace(creator) == "" {
			return nil, ErrEmptyParticipant
		}
		if !slices.Contains(members, creator) {
			members = append([]string{creator}, members...)
		}
		chat.Name = name
		chat.Description = strings.TrimSpace(description)
		chat.Admins = []string{creator}
	}

	for _, p := range members {
		chat.Participants = append(chat.Participants, p)
		chat.UnreadCounts[p] = 0
		chat.Muted[p] = false
		chat.Archived[p] = false
	}
	return chat, nil
}

func (c *Chat) IsGroup() bool { return c.Type == ChatTypeGroup }

func (c *Chat) IsParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

func (c *Chat) IsAdmin(userID string) bool {
	return slices.Contains(c.Admins, userID)
}

// Touch advances UpdatedAt. It never moves the timestamp backwards.
func (c *Chat) Touch(now time.Time) {
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// AddParticipant joins userID to a group. Joining twice is a no-op and
// reports false.
func (c *Chat) AddParticipant(userID string, now time.Time) (bool, error) {
	if !c.IsGroup() {
		return false, ErrNotGroup
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, ErrEmptyParticipant
	}
	if c.IsParticipant(userID) {
		return false, nil
	}
	c.Participants = append(c.Participants, userID)
	c.UnreadCounts[userID] = 0
	c.Muted[userID] = false
	c.Archived[userID] = false
	c.Touch(now)
	return true, nil
}

// RemoveParticipant drops userID and every per-participant entry it owns.
func (c *Chat) RemoveParticipant(userID string, now time.Time) error {
	if !c.IsGroup() {
		return ErrNotGroup
	}
	if !c.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if len(c.Participants) == 1 {
		return ErrLastParticipant
	}
	if c.IsAdmin(userID) && len(c.Admins) == 1 {
		return ErrLastAdmin
	}
	c.Participants = slices.DeleteFunc(c.Participants, func(p string) bool { return p == userID })
	c.Admins = slices.DeleteFunc(c.Admins, func(p string) bool { return p == userID })
	delete(c.UnreadCounts, userID)
	delete(c.Muted, userID)
	delete(c.Archived, userID)
	c.Touch(now)
	return nil
}

func (c *Chat) AddAdmin(userID string, now time.Time) (bool, error) {
	if !c.IsGroup() {
		return false, ErrNotGroup
	}
	if !c.IsParticipant(userID) {
		return false, ErrNotParticipant
	}
	if c.IsAdmin(userID) {
		return false, nil
	}
	c.Admins = append(c.Admins, userID)
	c.Touch(now)
	return true, nil
}

func (c *Chat) RemoveAdmin(userID string, now time.Time) (bool, error) {
	if !c.IsGroup() {
		return false, ErrNotGroup
	}
	if !c.IsAdmin(userID) {
		return false, nil
	}
	if len(c.Admins) == 1 {
		return false, ErrLastAdmin
	}
	c.Admins = slices.DeleteFunc(c.Admins, func(p string) bool { return p == userID })
	c.Touch(now)
	return true, nil
}

// IncrementUnread bumps userID's counter unless the chat is muted for them.
func (c *Chat) IncrementUnread(userID string) bool {
	if !c.IsParticipant(userID) || c.Muted[userID] {
		return false
	}
	c.UnreadCounts[userID]++
	return true
}

// ResetUnread zeroes userID's counter and reports whether anything changed.
func (c *Chat) ResetUnread(userID string) bool {
	if c.UnreadCounts[userID] == 0 {
		return false
	}
	c.UnreadCounts[userID] = 0
	return true
}

func (c *Chat) SetMuted(userID string, muted bool, now time.Time) error {
	if !c.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if c.Muted[userID] != muted {
		c.Muted[userID] = muted
		c.Touch(now)
	}
	return nil
}

func (c *Chat) SetArchived(userID string, archived bool, now time.Time) error {
	if !c.IsParticipant(userID) {
		return ErrNotParticipant
	}
	if c.Archived[userID] != archived {
		c.Archived[userID] = archived
		c.Touch(now)
	}
	return nil
}

func (c *Chat) SetPinned(pinned bool, now time.Time) {
	if c.Pinned != pinned {
		c.Pinned = pinned
		c.Touch(now)
	}
}

func (c *Chat) SetName(name string, now time.Time) error {
	if !c.IsGroup() {
		return ErrDirectChatNoSettings
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrGroupNameRequired
	}
	if c.Name != name {
		c.Name = name
		c.Touch(now)
	}
	return nil
}

func (c *Chat) SetDescription(description string, now time.Time) error {
	if !c.IsGroup() {
		return ErrDirectChatNoSettings
	}
	description = strings.TrimSpace(description)
	if c.Description != description {
		c.Description = description
		c.Touch(now)
	}
	return nil
}

// ApplyMessage records msg as the newest message: the summary is copied by
// value and every non-muted participant other than the sender gets one more
// unread message.
func (c *Chat) ApplyMessage(msg *Message) {
	c.LastMessage = &LastMessage{
		Content:   copyString(msg.Content),
		SenderID:  msg.SenderID,
		Timestamp: msg.CreatedAt,
		Type:      msg.Type,
	}
	for _, p := range c.Participants {
		if p != msg.SenderID {
			c.IncrementUnread(p)
		}
	}
	c.Touch(msg.CreatedAt)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
