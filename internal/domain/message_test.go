package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayload(t *testing.T) {
	file := &Attachment{URL: "https://cdn/x.png", Name: "x.png", MimeType: "image/png", Size: 10}

	p, err := NewPayload("", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeText, p.MessageType())

	p, err = NewPayload(MessageTypeImage, "", file)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeImage, p.MessageType())

	_, err = NewPayload(MessageTypeText, "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = NewPayload(MessageTypeFile, "", nil)
	assert.ErrorIs(t, err, ErrIncompleteAttachment)

	_, err = NewPayload(MessageTypeFile, "", &Attachment{URL: "u", Name: "n", MimeType: "m"})
	assert.ErrorIs(t, err, ErrIncompleteAttachment)

	_, err = NewPayload("video", "x", nil)
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestMessage_FilePayloadCarriesAttachment(t *testing.T) {
	p, err := NewFilePayload(MessageTypeFile, "report", Attachment{URL: "u", Name: "r.pdf", MimeType: "application/pdf", Size: 42})
	require.NoError(t, err)

	m := NewMessage("m", "c", "alice", p, t0)
	require.NotNil(t, m.File)
	assert.Equal(t, "r.pdf", m.File.Name)
	assert.Equal(t, "report", *m.Content)
	assert.Equal(t, MessageStateActive, m.State())
}

func TestMessage_Lifecycle(t *testing.T) {
	p, err := NewTextPayload("hello")
	require.NoError(t, err)
	m := NewMessage("m", "c", "alice", p, t0)

	require.NoError(t, m.Edit("hello again", t0.Add(time.Second)))
	assert.Equal(t, MessageStateEdited, m.State())
	assert.Equal(t, "hello again", *m.Content)
	require.NotNil(t, m.EditedAt)

	require.NoError(t, m.SetReaction("bob", "👍"))
	require.NoError(t, m.SetReaction("bob", "❤️"))
	assert.Equal(t, map[string]string{"bob": "❤️"}, m.Reactions)

	changed, err := m.MarkRead("bob")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = m.MarkRead("bob")
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, m.Delete(t0.Add(2*time.Second)))
	assert.Equal(t, MessageStateDeleted, m.State())
	assert.Nil(t, m.Content)

	assert.ErrorIs(t, m.Edit("back", t0), ErrMessageDeleted)
	assert.ErrorIs(t, m.Delete(t0), ErrMessageDeleted)
	assert.ErrorIs(t, m.SetReaction("carol", "x"), ErrMessageDeleted)
	_, err = m.RemoveReaction("bob")
	assert.ErrorIs(t, err, ErrMessageDeleted)
	_, err = m.MarkRead("carol")
	assert.ErrorIs(t, err, ErrMessageDeleted)
}

func TestMessage_RemoveReaction(t *testing.T) {
	p, _ := NewTextPayload("x")
	m := NewMessage("m", "c", "alice", p, t0)

	removed, err := m.RemoveReaction("bob")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, m.SetReaction("bob", "👍"))
	removed, err = m.RemoveReaction("bob")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, m.Reactions)
}
