package signaling

import (
	"sync"
	"time"
)

type presenceEntry struct {
	conn     Conn
	lastSeen time.Time
}

// Registry maps a user identity to at most one live connection.
// A reconnect under the same identity replaces the previous handle; the
// stale handle simply becomes unreachable through the registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*presenceEntry
}

// NewRegistry creates an empty presence registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*presenceEntry),
	}
}

// Connect records the mapping and returns the replaced handle, if any.
// An empty userID is a no-op; the session must refuse such connections
// before ever reaching the registry.
func (r *Registry) Connect(userID string, conn Conn) (prev Conn) {
	if userID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[userID]; ok {
		prev = existing.conn
	}
	r.entries[userID] = &presenceEntry{
		conn:     conn,
		lastSeen: time.Now(),
	}
	return prev
}

// Disconnect removes the mapping, but only if the given handle still owns
// it. A teardown racing a reconnect must not evict the newer session.
func (r *Registry) Disconnect(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.conn != conn {
		return false
	}
	delete(r.entries, userID)
	return true
}

// Lookup returns the live connection for a user
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// IsOnline reports whether a user holds a live connection
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// Touch stamps last-seen for a user, typically on a heartbeat
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[userID]; ok {
		entry.lastSeen = time.Now()
	}
}

// Online returns the identities of all connected users
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	return users
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Broadcast sends an event to every connected session. Sends are
// fire-and-forget; a full buffer on one connection never affects another.
func (r *Registry) Broadcast(event string, data interface{}) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.entries))
	for _, entry := range r.entries {
		conns = append(conns, entry.conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Send(event, data)
	}
}
