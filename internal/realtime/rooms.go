package realtime

import "sync"

// Rooms tracks which connections listen to which conversation.
type Rooms struct {
	mu       sync.RWMutex
	byChat   map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		byChat:   make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Join subscribes c to chatID. A client that is already closing is ignored
// so a late join cannot outlive its LeaveAll.
func (r *Rooms) Join(chatID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	members, ok := r.byChat[chatID]
	if !ok {
		members = make(map[*Client]struct{})
		r.byChat[chatID] = members
	}
	members[c] = struct{}{}

	joined, ok := r.byClient[c]
	if !ok {
		joined = make(map[string]struct{})
		r.byClient[c] = joined
	}
	joined[chatID] = struct{}{}
}

func (r *Rooms) Leave(chatID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(chatID, c)
}

func (r *Rooms) leaveLocked(chatID string, c *Client) {
	if members, ok := r.byChat[chatID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.byChat, chatID)
		}
	}
	if joined, ok := r.byClient[c]; ok {
		delete(joined, chatID)
		if len(joined) == 0 {
			delete(r.byClient, c)
		}
	}
}

// LeaveAll removes c from every room it joined.
func (r *Rooms) LeaveAll(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chatID := range r.byClient[c] {
		r.leaveLocked(chatID, c)
	}
}

// Close empties a room.
func (r *Rooms) Close(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.byChat[chatID] {
		r.leaveLocked(chatID, c)
	}
}

func (r *Rooms) Has(chatID string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byChat[chatID][c]
	return ok
}

// Members returns a snapshot of the connections in chatID's room.
func (r *Rooms) Members(chatID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byChat[chatID]))
	for c := range r.byChat[chatID] {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) Joined(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byClient[c]))
	for chatID := range r.byClient[c] {
		out = append(out, chatID)
	}
	return out
}
