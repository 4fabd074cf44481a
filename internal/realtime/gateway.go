// File: internal/realtime/gateway.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iyunix/go-parley/internal/domain"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
)

// Logger defines the logging interface used by the gateway
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Verifier resolves a bearer credential to a user id.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// ChatService is the part of the chat service the gateway drives.
type ChatService interface {
	SendMessage(ctx context.Context, chatID, senderID string, payload domain.Payload) (*domain.Message, error)
	GetChat(ctx context.Context, chatID, userID string) (*domain.Chat, error)
	GetUserChats(ctx context.Context, userID string) ([]*domain.Chat, error)
}

// Metrics receives connection and event counters.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	EventReceived(event string)
	EventDropped(reason string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()    {}
func (noopMetrics) ConnectionClosed()    {}
func (noopMetrics) EventReceived(string) {}
func (noopMetrics) EventDropped(string)  {}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// AuthTimeout bounds credential verification and room lookup before
	// the upgrade.
	AuthTimeout  time.Duration
	EventTimeout time.Duration
	EventRate    float64
	EventBurst   int
	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts
	// any origin.
	AllowedOrigins []string
}

func DefaultConfig() Config {
	pongWait := 60 * time.Second
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     (pongWait * 9) / 10,
		MaxMessageSize: 8 * 1024,
		SendBuffer:     256,
		AuthTimeout:    5 * time.Second,
		EventTimeout:   10 * time.Second,
		EventRate:      10,
		EventBurst:     20,
	}
}

type Option func(*Gateway)

func WithLogger(logger Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// Gateway accepts websocket connections, routes inbound events to the chat
// service and fans outbound events out to live connections.
type Gateway struct {
	cfg      Config
	chats    ChatService
	verifier Verifier
	presence *Registry
	rooms    *Rooms
	upgrader websocket.Upgrader
	logger   Logger
	metrics  Metrics

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
}

func NewGateway(cfg Config, chats ChatService, verifier Verifier, presence *Registry, opts ...Option) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		cfg:      cfg,
		chats:    chats,
		verifier: verifier,
		presence: presence,
		rooms:    NewRooms(),
		logger:   noopLogger{},
		metrics:  noopMetrics{},
		ctx:      ctx,
		cancel:   cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Presence() *Registry { return g.presence }

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeWS authenticates the caller, then upgrades the connection and
// subscribes it to a room per conversation the caller belongs to.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if g.isClosed() {
		writeHTTPError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	credential := credentialFrom(r)
	if credential == "" {
		writeHTTPError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.AuthTimeout)
	defer cancel()

	userID, err := g.verifier.Verify(ctx, credential)
	if err != nil || userID == "" {
		g.logger.Info("websocket authentication failed", "remote_addr", r.RemoteAddr, "error", err)
		writeHTTPError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	chats, err := g.chats.GetUserChats(ctx, userID)
	if err != nil {
		g.logger.Error("failed to load chats for websocket", "user_id", userID, "error", err)
		writeHTTPError(w, http.StatusInternalServerError, "could not load conversations")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := newClient(g, userID, conn)
	g.register(client, chats)

	// Membership committed between the first load and registration would
	// otherwise be missed until the client reconnects.
	if fresh, err := g.chats.GetUserChats(ctx, userID); err == nil {
		g.syncRooms(client, fresh)
	} else {
		g.logger.Warn("failed to refresh rooms after connect", "user_id", userID, "error", err)
	}

	go client.writePump()
	go client.readPump()
}

func (g *Gateway) register(c *Client, chats []*domain.Chat) {
	count := g.presence.Add(c)
	for _, chat := range chats {
		g.rooms.Join(chat.ID, c)
	}
	g.metrics.ConnectionOpened()
	g.logger.Info("client connected", "user_id", c.userID, "connections", count, "rooms", len(chats))
}

// syncRooms makes c's subscriptions match chats exactly.
func (g *Gateway) syncRooms(c *Client, chats []*domain.Chat) {
	want := make(map[string]struct{}, len(chats))
	for _, chat := range chats {
		want[chat.ID] = struct{}{}
		g.rooms.Join(chat.ID, c)
	}
	for _, chatID := range g.rooms.Joined(c) {
		if _, ok := want[chatID]; !ok {
			g.rooms.Leave(chatID, c)
		}
	}
}

func (g *Gateway) unregister(c *Client) {
	g.rooms.LeaveAll(c)
	remaining := g.presence.Remove(c)
	g.metrics.ConnectionClosed()
	g.logger.Info("client disconnected", "user_id", c.userID, "connections", remaining)
}

// dispatch handles one inbound frame. Failures are reported to the sender
// as error events; a panic is contained to the event that caused it.
func (g *Gateway) dispatch(c *Client, data []byte) {
	var env Envelope
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("panic while handling event", "user_id", c.userID, "event", env.Event, "panic", fmt.Sprint(rec))
			c.sendError(env.Event, "", "internal server error")
		}
	}()

	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		c.sendError("", "", "malformed event")
		return
	}
	g.metrics.EventReceived(env.Event)

	ctx, cancel := context.WithTimeout(g.ctx, g.cfg.EventTimeout)
	defer cancel()

	switch env.Event {
	case EventSendMessage:
		var req SendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendError(env.Event, "", "malformed send_message payload")
			return
		}
		g.handleSendMessage(ctx, c, req)
	case EventTyping, EventStopTyping:
		var req TypingRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendError(env.Event, "", "malformed typing payload")
			return
		}
		g.handleTyping(c, env.Event, req)
	default:
		c.sendError(env.Event, "", "unknown event")
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, req SendMessageRequest) {
	if strings.TrimSpace(req.ChatID) == "" {
		c.sendError(EventSendMessage, "", "chatId is required")
		return
	}
	payload, err := domain.NewPayload(req.Type, req.Content, req.File)
	if err != nil {
		c.sendError(EventSendMessage, req.ChatID, err.Error())
		return
	}

	msg, err := g.chats.SendMessage(ctx, req.ChatID, c.userID, payload)
	if err != nil {
		c.sendError(EventSendMessage, req.ChatID, chatservice.PublicMessage(err))
		return
	}

	chat, err := g.chats.GetChat(ctx, req.ChatID, c.userID)
	if err != nil {
		g.logger.Warn("message stored but chat reload failed", "chat_id", req.ChatID, "error", err)
		return
	}
	g.EmitToUsers(chat.Participants, EventNewMessage, MessageEvent{ChatID: req.ChatID, Message: msg})
}

func (g *Gateway) handleTyping(c *Client, event string, req TypingRequest) {
	if !g.rooms.Has(req.ChatID, c) {
		c.sendError(event, req.ChatID, "not a participant in this chat")
		return
	}
	out := EventUserTyping
	if event == EventStopTyping {
		out = EventUserStopTyping
	}
	g.EmitToRoom(req.ChatID, out, TypingEvent{ChatID: req.ChatID, UserID: c.userID}, c)
}

// ===== BROADCASTER =====

// EmitToUsers sends an event to every live connection of each user and
// returns how many frames were queued.
func (g *Gateway) EmitToUsers(userIDs []string, event string, data interface{}) int {
	frame, err := encode(event, data)
	if err != nil {
		g.logger.Error("failed to encode event", "event", event, "error", err)
		return 0
	}
	queued := 0
	for _, userID := range userIDs {
		for _, c := range g.presence.Connections(userID) {
			if c.enqueue(frame) {
				queued++
			}
		}
	}
	return queued
}

// EmitToRoom sends an event to every connection in chatID's room except
// the optional origin connection.
func (g *Gateway) EmitToRoom(chatID, event string, data interface{}, except *Client) int {
	frame, err := encode(event, data)
	if err != nil {
		g.logger.Error("failed to encode event", "event", event, "error", err)
		return 0
	}
	queued := 0
	for _, c := range g.rooms.Members(chatID) {
		if c == except {
			continue
		}
		if c.enqueue(frame) {
			queued++
		}
	}
	return queued
}

// JoinRoom subscribes the live connections of userIDs to chatID. It is
// called when membership changes after those connections were opened.
func (g *Gateway) JoinRoom(chatID string, userIDs ...string) {
	for _, userID := range userIDs {
		for _, c := range g.presence.Connections(userID) {
			g.rooms.Join(chatID, c)
		}
	}
}

func (g *Gateway) LeaveRoom(chatID string, userIDs ...string) {
	for _, userID := range userIDs {
		for _, c := range g.presence.Connections(userID) {
			g.rooms.Leave(chatID, c)
		}
	}
}

func (g *Gateway) CloseRoom(chatID string) {
	g.rooms.Close(chatID)
}

// Close disconnects every client and refuses new connections.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	g.cancel()
	for _, c := range g.presence.All() {
		c.close()
	}
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func credentialFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func writeHTTPError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
