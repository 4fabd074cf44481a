package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-parley/internal/domain"
	"github.com/iyunix/go-parley/internal/handlers"
	"github.com/iyunix/go-parley/internal/middleware"
	"github.com/iyunix/go-parley/internal/realtime"
	"github.com/iyunix/go-parley/internal/services"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
	"github.com/iyunix/go-parley/internal/testutil"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}

type emitted struct {
	users []string
	event string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	emits  []emitted
	joins  map[string][]string
	leaves map[string][]string
	closed []string
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{joins: map[string][]string{}, leaves: map[string][]string{}}
}

func (b *recordingBroadcaster) EmitToUsers(userIDs []string, event string, _ interface{}) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emits = append(b.emits, emitted{users: append([]string(nil), userIDs...), event: event})
	return len(userIDs)
}

func (b *recordingBroadcaster) JoinRoom(chatID string, userIDs ...string) {
	b.joins[chatID] = append(b.joins[chatID], userIDs...)
}

func (b *recordingBroadcaster) LeaveRoom(chatID string, userIDs ...string) {
	b.leaves[chatID] = append(b.leaves[chatID], userIDs...)
}

func (b *recordingBroadcaster) CloseRoom(chatID string) { b.closed = append(b.closed, chatID) }

func (b *recordingBroadcaster) events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.emits))
	for i, e := range b.emits {
		out[i] = e.event
	}
	return out
}

func (b *recordingBroadcaster) last() emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emits[len(b.emits)-1]
}

type api struct {
	router      http.Handler
	broadcaster *recordingBroadcaster
}

// newAPI wires the real service behind a router whose caller is taken from
// the X-User header.
func newAPI(t *testing.T) *api {
	t.Helper()
	uow, _ := testutil.NewUnitOfWork(t)
	svc, err := services.NewChatService(uow, chatservice.DefaultConfig())
	require.NoError(t, err)

	b := newRecordingBroadcaster()
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user := req.Header.Get("X-User"); user != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	handlers.RegisterChatRoutes(r,
		handlers.NewChatHandler(svc, b, nopLogger{}),
		handlers.NewMessageHandler(svc, b, nopLogger{}))
	return &api{router: r, broadcaster: b}
}

func (a *api) do(t *testing.T, user, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) createDirect(t *testing.T, caller, other string) *domain.Chat {
	t.Helper()
	rec := a.do(t, caller, http.MethodPost, "/chats", map[string]interface{}{"participants": []string{other}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*domain.Chat](t, rec)
}

func TestCreateChat(t *testing.T) {
	a := newAPI(t)

	chat := a.createDirect(t, "alice", "bob")
	assert.ElementsMatch(t, []string{"alice", "bob"}, chat.Participants)
	assert.ElementsMatch(t, []string{"alice", "bob"}, a.broadcaster.joins[chat.ID])
	assert.Equal(t, []string{realtime.EventChatUpdated}, a.broadcaster.events())

	rec := a.do(t, "alice", http.MethodPost, "/chats", map[string]interface{}{
		"participants": []string{"bob", "carol"},
		"type":         "group",
		"name":         "Team",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	group := decode[*domain.Chat](t, rec)
	assert.Equal(t, []string{"alice"}, group.Admins)
}

func TestCreateChat_BoundaryValidation(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"no participants", map[string]interface{}{"participants": []string{}}},
		{"unknown type", map[string]interface{}{"participants": []string{"bob"}, "type": "broadcast"}},
		{"unknown field", map[string]interface{}{"participants": []string{"bob"}, "color": "red"}},
		{"group without name", map[string]interface{}{"participants": []string{"bob"}, "type": "group"}},
		{"direct with three", map[string]interface{}{"participants": []string{"bob", "carol"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, "alice", http.MethodPost, "/chats", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec := a.do(t, "", http.MethodPost, "/chats", map[string]interface{}{"participants": []string{"bob"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMessageFlow(t *testing.T) {
	a := newAPI(t)
	chat := a.createDirect(t, "alice", "bob")
	base := "/chats/" + chat.ID

	rec := a.do(t, "alice", http.MethodPost, base+"/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[*domain.Message](t, rec)
	assert.Equal(t, realtime.EventNewMessage, a.broadcaster.last().event)
	assert.ElementsMatch(t, []string{"alice", "bob"}, a.broadcaster.last().users)

	rec = a.do(t, "bob", http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chats := decode[[]*domain.Chat](t, rec)
	require.Len(t, chats, 1)
	assert.Equal(t, 1, chats[0].UnreadCounts["bob"])

	rec = a.do(t, "bob", http.MethodPost, base+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, rec)["messagesRead"])
	assert.Equal(t, realtime.EventMessagesRead, a.broadcaster.last().event)

	// A second mark-read changes nothing and broadcasts nothing.
	before := len(a.broadcaster.events())
	rec = a.do(t, "bob", http.MethodPost, base+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.broadcaster.events(), before)

	rec = a.do(t, "alice", http.MethodPut, "/messages/"+msg.ID, map[string]string{"content": "hello!"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[*domain.Message](t, rec).Edited)
	assert.Equal(t, realtime.EventMessageUpdated, a.broadcaster.last().event)

	rec = a.do(t, "bob", http.MethodPut, "/messages/"+msg.ID, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, "bob", http.MethodPost, "/messages/"+msg.ID+"/reactions", map[string]string{"reaction": "👍"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "👍", decode[*domain.Message](t, rec).Reactions["bob"])

	rec = a.do(t, "bob", http.MethodDelete, "/messages/"+msg.ID+"/reactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[*domain.Message](t, rec).Reactions)

	rec = a.do(t, "alice", http.MethodDelete, "/messages/"+msg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[*domain.Message](t, rec).Deleted)

	rec = a.do(t, "bob", http.MethodPost, "/messages/"+msg.ID+"/reactions", map[string]string{"reaction": "😮"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, "alice", http.MethodGet, base+"/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*domain.Message](t, rec), 1)
}

func TestGetChatMessages_Errors(t *testing.T) {
	a := newAPI(t)
	chat := a.createDirect(t, "alice", "bob")
	base := "/chats/" + chat.ID + "/messages"

	assert.Equal(t, http.StatusBadRequest, a.do(t, "alice", http.MethodGet, base+"?limit=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, "alice", http.MethodGet, base+"?before=missing", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, "mallory", http.MethodGet, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, "alice", http.MethodGet, "/chats/nope/messages", nil).Code)
}

func TestSendMessage_Validation(t *testing.T) {
	a := newAPI(t)
	chat := a.createDirect(t, "alice", "bob")
	path := "/chats/" + chat.ID + "/messages"

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'x'
	}
	assert.Equal(t, http.StatusBadRequest, a.do(t, "alice", http.MethodPost, path, map[string]string{"content": "   "}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, "alice", http.MethodPost, path, map[string]string{"content": string(long)}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, "alice", http.MethodPost, path, map[string]string{"type": "image"}).Code)

	rec := a.do(t, "alice", http.MethodPost, path, map[string]interface{}{
		"type": "image",
		"file": map[string]interface{}{"fileUrl": "https://cdn.example/cat.png", "fileName": "cat.png", "fileType": "image/png", "fileSize": 2048},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[*domain.Message](t, rec)
	require.NotNil(t, msg.File)
	assert.Equal(t, "cat.png", msg.File.Name)
}

func TestSettingsAndMembership(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, "alice", http.MethodPost, "/chats", map[string]interface{}{
		"participants": []string{"bob"}, "type": "group", "name": "Team",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	group := decode[*domain.Chat](t, rec)
	base := "/chats/" + group.ID

	rec = a.do(t, "bob", http.MethodPatch, base+"/settings", map[string]interface{}{"name": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, "bob", http.MethodPatch, base+"/settings", map[string]interface{}{"muted": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[*domain.Chat](t, rec).Muted["bob"])

	rec = a.do(t, "alice", http.MethodPost, base+"/participants", map[string]string{"userId": "carol"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, a.broadcaster.joins[group.ID], "carol")

	rec = a.do(t, "alice", http.MethodPut, base+"/admins/carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[*domain.Chat](t, rec).Admins, "carol")

	rec = a.do(t, "carol", http.MethodDelete, base+"/participants/bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bob"}, a.broadcaster.leaves[group.ID])
	assert.Contains(t, a.broadcaster.last().users, "bob")

	rec = a.do(t, "alice", http.MethodDelete, base+"/admins/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, "carol", http.MethodDelete, base+"/admins/carol", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, "carol", http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{group.ID}, a.broadcaster.closed)
	assert.Equal(t, realtime.EventChatDeleted, a.broadcaster.last().event)

	assert.Equal(t, http.StatusNotFound, a.do(t, "carol", http.MethodGet, base, nil).Code)
}

type failingChecker struct{ err error }

func (f failingChecker) HealthCheck(context.Context) error { return f.err }

type fixedPresence int

func (p fixedPresence) Users() int { return int(p) }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.HealthHandler(failingChecker{}, fixedPresence(3), nopLogger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"onlineUsers":3`)

	rec = httptest.NewRecorder()
	handlers.HealthHandler(failingChecker{err: errors.New("db down")}, fixedPresence(0), nopLogger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
