// File: internal/handlers/message_handler.go
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-parley/internal/domain"
	"github.com/iyunix/go-parley/internal/dtos"
	"github.com/iyunix/go-parley/internal/realtime"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
)

type MessageHandler struct {
	ChatService chatservice.Service
	Broadcaster Broadcaster
	Logger      Logger
}

func NewMessageHandler(cs chatservice.Service, b Broadcaster, logger Logger) *MessageHandler {
	return &MessageHandler{
		ChatService: cs,
		Broadcaster: b,
		Logger:      logger,
	}
}

// GetChatMessages handles GET /chats/{id}/messages?limit=&before=.
func (h *MessageHandler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	messages, err := h.ChatService.GetChatMessages(r.Context(), mux.Vars(r)["id"], userID, limit, query.Get("before"))
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dtos.SendMessageRequestDTO
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := req.Payload()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	chatID := mux.Vars(r)["id"]
	msg, err := h.ChatService.SendMessage(r.Context(), chatID, userID, payload)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	h.fanOut(r.Context(), chatID, userID, realtime.EventNewMessage, realtime.MessageEvent{ChatID: chatID, Message: msg})
	writeJSON(w, http.StatusCreated, msg)
}

// MarkAsRead handles POST /chats/{id}/read. Nothing is broadcast when the
// call changed nothing.
func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	chatID := mux.Vars(r)["id"]
	receipt, err := h.ChatService.MarkMessagesAsRead(r.Context(), chatID, userID)
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}

	if receipt.Changed() {
		h.fanOut(r.Context(), chatID, userID, realtime.EventMessagesRead, realtime.ReadEvent{ChatID: chatID, UserID: userID})
	}
	writeJSON(w, http.StatusOK, dtos.NewMarkReadResponse(receipt))
}

func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dtos.EditMessageRequestDTO
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.ChatService.EditMessage(r.Context(), mux.Vars(r)["id"], userID, req.Content)
	h.respondWithMessage(w, r, userID, msg, err)
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	msg, err := h.ChatService.DeleteMessage(r.Context(), mux.Vars(r)["id"], userID)
	h.respondWithMessage(w, r, userID, msg, err)
}

func (h *MessageHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dtos.ReactionRequestDTO
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.ChatService.AddReaction(r.Context(), mux.Vars(r)["id"], userID, req.Reaction)
	h.respondWithMessage(w, r, userID, msg, err)
}

func (h *MessageHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	msg, err := h.ChatService.RemoveReaction(r.Context(), mux.Vars(r)["id"], userID)
	h.respondWithMessage(w, r, userID, msg, err)
}

// respondWithMessage finishes every message mutation: the updated message
// is returned and pushed to the chat's participants.
func (h *MessageHandler) respondWithMessage(w http.ResponseWriter, r *http.Request, userID string, msg *domain.Message, err error) {
	if err != nil {
		writeServiceError(w, h.Logger, r, err)
		return
	}
	h.fanOut(r.Context(), msg.ChatID, userID, realtime.EventMessageUpdated, realtime.MessageEvent{ChatID: msg.ChatID, Message: msg})
	writeJSON(w, http.StatusOK, msg)
}

// fanOut looks up the current participants and emits to them. The write has
// already committed, so a failed lookup is logged and not surfaced.
func (h *MessageHandler) fanOut(ctx context.Context, chatID, userID, event string, data interface{}) {
	chat, err := h.ChatService.GetChat(ctx, chatID, userID)
	if err != nil {
		h.Logger.Warn("broadcast skipped, chat reload failed", "chat_id", chatID, "event", event, "error", err)
		return
	}
	h.Broadcaster.EmitToUsers(chat.Participants, event, data)
}
