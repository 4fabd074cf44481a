package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func assertStateMatchesParticipants(t *testing.T, c *Chat) {
	t.Helper()
	assert.ElementsMatch(t, c.Participants, keys(c.UnreadCounts))
	assert.ElementsMatch(t, c.Participants, keys(c.Muted))
	assert.ElementsMatch(t, c.Participants, keys(c.Archived))
	for _, a := range c.Admins {
		assert.Contains(t, c.Participants, a)
	}
}

func TestNewChat_Direct(t *testing.T) {
	c, err := NewChat("c1", []string{"alice", "bob"}, ChatTypeDirect, "", "", "alice", t0)
	require.NoError(t, err)
	assert.Equal(t, ChatTypeDirect, c.Type)
	assert.Empty(t, c.Admins)
	assert.Empty(t, c.Name)
	assert.Equal(t, map[string]int{"alice": 0, "bob": 0}, c.UnreadCounts)
	assertStateMatchesParticipants(t, c)
}

func TestNewChat_Rejections(t *testing.T) {
	tests := []struct {
		name         string
		participants []string
		chatType     ChatType
		groupName    string
		creator      string
		want         error
	}{
		{"direct with three", []string{"a", "b", "c"}, ChatTypeDirect, "", "a", ErrDirectChatSize},
		{"direct duplicates collapse to one", []string{"a", "a"}, ChatTypeDirect, "", "a", ErrDirectChatSize},
		{"direct creator outside", []string{"a", "b"}, ChatTypeDirect, "", "z", ErrCreatorNotMember},
		{"group without name", []string{"a", "b"}, ChatTypeGroup, "  ", "a", ErrGroupNameRequired},
		{"empty participant", []string{"a", ""}, ChatTypeDirect, "", "a", ErrEmptyParticipant},
		{"unknown type", []string{"a", "b"}, ChatType("channel"), "", "a", ErrInvalidChatType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChat("c", tt.participants, tt.chatType, tt.groupName, "", tt.creator, t0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewChat_GroupAddsCreatorAsAdmin(t *testing.T) {
	c, err := NewChat("g", []string{"bob", "carol"}, ChatTypeGroup, " Team ", "desc", "alice", t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, c.Participants)
	assert.Equal(t, []string{"alice"}, c.Admins)
	assert.Equal(t, "Team", c.Name)
	assertStateMatchesParticipants(t, c)
}

func TestChat_ApplyMessage(t *testing.T) {
	c, err := NewChat("g", []string{"alice", "bob", "carol"}, ChatTypeGroup, "g", "", "alice", t0)
	require.NoError(t, err)
	require.NoError(t, c.SetMuted("carol", true, t0))

	p, err := NewTextPayload("hello")
	require.NoError(t, err)
	msg := NewMessage("m1", "g", "alice", p, t0.Add(time.Second))
	c.ApplyMessage(msg)

	assert.Equal(t, map[string]int{"alice": 0, "bob": 1, "carol": 0}, c.UnreadCounts)
	require.NotNil(t, c.LastMessage)
	assert.Equal(t, "hello", *c.LastMessage.Content)
	assert.Equal(t, "alice", c.LastMessage.SenderID)
	assert.Equal(t, MessageTypeText, c.LastMessage.Type)
	assert.True(t, c.UpdatedAt.Equal(msg.CreatedAt))

	// The summary is a copy: deleting the message later leaves it intact.
	require.NoError(t, msg.Delete(t0.Add(2*time.Second)))
	assert.Equal(t, "hello", *c.LastMessage.Content)
}

func TestChat_TouchIsMonotonic(t *testing.T) {
	c, err := NewChat("c", []string{"a", "b"}, ChatTypeDirect, "", "", "a", t0)
	require.NoError(t, err)
	c.Touch(t0.Add(time.Minute))
	c.Touch(t0)
	assert.True(t, c.UpdatedAt.Equal(t0.Add(time.Minute)))
}

func TestChat_MembershipKeepsInvariants(t *testing.T) {
	c, err := NewChat("g", []string{"alice", "bob"}, ChatTypeGroup, "g", "", "alice", t0)
	require.NoError(t, err)

	added, err := c.AddParticipant("carol", t0)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = c.AddParticipant("carol", t0)
	require.NoError(t, err)
	assert.False(t, added)
	assertStateMatchesParticipants(t, c)

	assert.ErrorIs(t, c.RemoveParticipant("alice", t0), ErrLastAdmin)
	_, err = c.RemoveAdmin("alice", t0)
	assert.ErrorIs(t, err, ErrLastAdmin)

	_, err = c.AddAdmin("bob", t0)
	require.NoError(t, err)
	require.NoError(t, c.RemoveParticipant("alice", t0))
	assert.Equal(t, []string{"bob"}, c.Admins)
	assertStateMatchesParticipants(t, c)

	_, err = c.AddAdmin("zed", t0)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestChat_DirectRejectsGroupOperations(t *testing.T) {
	c, err := NewChat("c", []string{"a", "b"}, ChatTypeDirect, "", "", "a", t0)
	require.NoError(t, err)

	_, err = c.AddParticipant("c", t0)
	assert.ErrorIs(t, err, ErrNotGroup)
	assert.ErrorIs(t, c.SetName("x", t0), ErrDirectChatNoSettings)
	assert.ErrorIs(t, c.SetDescription("x", t0), ErrDirectChatNoSettings)
}

func TestChat_ResetUnreadReportsChange(t *testing.T) {
	c, err := NewChat("c", []string{"a", "b"}, ChatTypeDirect, "", "", "a", t0)
	require.NoError(t, err)
	assert.False(t, c.ResetUnread("b"))
	c.IncrementUnread("b")
	assert.True(t, c.ResetUnread("b"))
	assert.Equal(t, 0, c.UnreadCounts["b"])
}
