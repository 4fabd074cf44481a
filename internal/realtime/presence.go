// File: internal/realtime/presence.go
package realtime

import "sync"

// Registry maps each online user to the set of live connections they hold.
// A user may be connected from several devices at once. Entries exist only
// while a connection is open and are never persisted.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[*Client]struct{})}
}

// Add registers c under its user and returns how many connections that user
// now holds.
func (r *Registry) Add(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[c.userID] = set
	}
	set[c] = struct{}{}
	return len(set)
}

// Remove drops c and returns how many connections its user still holds. The
// user's entry disappears with their last connection.
func (r *Registry) Remove(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.userID]
	if !ok {
		return 0
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.userID)
		return 0
	}
	return len(set)
}

// Connections returns a snapshot of userID's live connections.
func (r *Registry) Connections(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Users returns how many distinct users are online.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, set := range r.conns {
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}
