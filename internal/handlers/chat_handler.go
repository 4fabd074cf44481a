// File: internal/handlers/chat_handler.go
package handlers

import (
	"net/http"
	"slices"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-parley/internal/domain"
	"github.com/iyunix/go-parley/internal/dtos"
	"github.com/iyunix/go-parley/internal/realtime"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
)

// Broadcaster pushes the result of a REST mutation to live connections.
type Broadcaster interface {
	EmitToUsers(userIDs []string, event string, data interface{}) int
	JoinRoom(chatID string, userIDs ...string)
	LeaveRoom(chatID string, userIDs ...string)
	CloseRoom(chatID string)
}

type ChatHandler struct {
	ChatService chatservice.Service
	Broadcaster Broadcaster
	Logger      Logger
}

func NewChatHandler(cs chatservice.Service, b Broadcaster, logger Logger) *ChatHandler {
	return &ChatHandler{
		ChatService: cs,
		Broadcaster: b,
		Logger:      logger,
	}
}

// CreateChat handles POST /chats. The caller always ends up a participant.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dtos.CreateChatRequestDTO
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	participants := req.Participants
	if !slices.Contains(participants, userID) {
		participants = append([]string{userID}, participants...)
	}

	chat, err := h.ChatService.CreateChat(r.Context(), participants, req.ChatType(), req.Name, req.Description, userID)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.Broadcaster.JoinRoom(chat.ID, chat.Participants...)
	h.Broadcaster.EmitToUsers(chat.Participants, realtime.EventChatUpdated, realtime.ChatEvent{Chat: chat})
	writeJSON(w, http.StatusCreated, chat)
}

// GetUserChats handles the request to retrieve all chats for a user.
func (h *ChatHandler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	chats, err := h.ChatService.GetUserChats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}
	if chats == nil {
		chats = []*domain.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	chat, err := h.ChatService.GetChat(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// UpdateSettings handles PATCH /chats/{id}/settings.
func (h *ChatHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dtos.UpdateSettingsRequestDTO
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	chat, err := h.ChatService.UpdateChatSettings(r.Context(), mux.Vars(r)["id"], userID, req.Settings())
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.Broadcaster.EmitToUsers(chat.Participants, realtime.EventChatUpdated, realtime.ChatEvent{Chat: chat})
	writeJSON(w, http.StatusOK, chat)
}

// DeleteChat removes the chat and its messages and tells every participant.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	chat, err := h.ChatService.DeleteChat(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.Broadcaster.EmitToUsers(chat.Participants, realtime.EventChatDeleted, realtime.ChatDeletedEvent{ChatID: chat.ID})
	h.Broadcaster.CloseRoom(chat.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dtos.AddParticipantRequestDTO
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	chat, err := h.ChatService.AddParticipant(r.Context(), mux.Vars(r)["id"], userID, req.UserID)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.Broadcaster.JoinRoom(chat.ID, req.UserID)
	h.Broadcaster.EmitToUsers(chat.Participants, realtime.EventChatUpdated, realtime.ChatEvent{Chat: chat})
	writeJSON(w, http.StatusOK, chat)
}

// RemoveParticipant covers both an admin removing someone and a member
// leaving.
func (h *ChatHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	target := vars["userId"]
	chat, err := h.ChatService.RemoveParticipant(r.Context(), vars["id"], userID, target)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.Broadcaster.LeaveRoom(chat.ID, target)
	h.Broadcaster.EmitToUsers(append(slices.Clone(chat.Participants), target), realtime.EventChatUpdated, realtime.ChatEvent{Chat: chat})
	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAdmin(w, r, true)
}

func (h *ChatHandler) RevokeAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAdmin(w, r, false)
}

func (h *ChatHandler) setAdmin(w http.ResponseWriter, r *http.Request, admin bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	chat, err := h.ChatService.SetAdmin(r.Context(), vars["id"], userID, vars["userId"], admin)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.Broadcaster.EmitToUsers(chat.Participants, realtime.EventChatUpdated, realtime.ChatEvent{Chat: chat})
	writeJSON(w, http.StatusOK, chat)
}
