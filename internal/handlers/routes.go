package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes mounts the chat API on r. Authentication and the
// other per-request middleware are the caller's concern.
func RegisterChatRoutes(r *mux.Router, chats *ChatHandler, messages *MessageHandler) {
	r.HandleFunc("/chats", chats.CreateChat).Methods(http.MethodPost)
	r.HandleFunc("/chats", chats.GetUserChats).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}", chats.GetChat).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}", chats.DeleteChat).Methods(http.MethodDelete)
	r.HandleFunc("/chats/{id}/settings", chats.UpdateSettings).Methods(http.MethodPatch)
	r.HandleFunc("/chats/{id}/participants", chats.AddParticipant).Methods(http.MethodPost)
	r.HandleFunc("/chats/{id}/participants/{userId}", chats.RemoveParticipant).Methods(http.MethodDelete)
	r.HandleFunc("/chats/{id}/admins/{userId}", chats.GrantAdmin).Methods(http.MethodPut)
	r.HandleFunc("/chats/{id}/admins/{userId}", chats.RevokeAdmin).Methods(http.MethodDelete)

	r.HandleFunc("/chats/{id}/messages", messages.GetChatMessages).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}/messages", messages.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/chats/{id}/read", messages.MarkAsRead).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", messages.EditMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", messages.DeleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/reactions", messages.AddReaction).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions", messages.RemoveReaction).Methods(http.MethodDelete)
}
