package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender delivers events to one connection's transport. Send must not block
// indefinitely; implementations report a dead transport with an error.
type Sender interface {
	Send(event Event) error
	Close() error
}

// Connection is the gateway's record of one client session. All fields are
// owned by the Registry and mutated only under its lock.
type Connection struct {
	id             string
	userID         string
	conversationID string
	authenticated  bool
	lastActivity   time.Time
	sender         Sender
}

// ConnInfo is a point-in-time copy of a connection's metadata.
type ConnInfo struct {
	ID             string
	UserID         string
	ConversationID string
	Authenticated  bool
	LastActivity   time.Time
}

// Target pairs a connection id with its sender for lock-free delivery.
type Target struct {
	ID     string
	UserID string
	Sender Sender
}

// Registry owns live connections plus the conversation and user indexes.
// It is the single serialization point for connection state; broadcast
// reads take snapshots so no lock is held during transport writes.
type Registry struct {
	mu             sync.RWMutex
	conns          map[string]*Connection
	byConversation map[string]map[string]*Connection
	byUser         map[string]map[string]*Connection
	now            func() time.Time
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:          make(map[string]*Connection),
		byConversation: make(map[string]map[string]*Connection),
		byUser:         make(map[string]map[string]*Connection),
		now:            time.Now,
	}
}

// Register adds a connection for the given sender and returns its id.
func (r *Registry) Register(sender Sender) string {
	conn := &Connection{
		id:     uuid.New().String(),
		sender: sender,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn.lastActivity = r.now()
	r.conns[conn.id] = conn
	return conn.id
}

// Info returns a copy of the connection's metadata.
func (r *Registry) Info(id string) (ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return ConnInfo{}, false
	}
	return ConnInfo{
		ID:             conn.id,
		UserID:         conn.userID,
		ConversationID: conn.conversationID,
		Authenticated:  conn.authenticated,
		LastActivity:   conn.lastActivity,
	}, true
}

// Sender returns the transport sender for a connection.
func (r *Registry) Sender(id string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return conn.sender, true
}

// Remove deletes the connection from the registry and both indexes.
// Removal is idempotent; the first call reports true.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) bool {
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	r.leaveRoomLocked(conn)
	r.leaveUserLocked(conn)
	delete(r.conns, id)
	return true
}

// Touch updates the connection's last activity timestamp.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.lastActivity = r.now()
	return true
}

// Authenticate binds the connection to a user. Rebinding moves the
// connection between user sets (re-authentication is last write wins).
func (r *Registry) Authenticate(id, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	if conn.userID != userID {
		r.leaveUserLocked(conn)
		conn.userID = userID
		set, ok := r.byUser[userID]
		if !ok {
			set = make(map[string]*Connection)
			r.byUser[userID] = set
		}
		set[id] = conn
	}
	conn.authenticated = true
	conn.lastActivity = r.now()
	return true
}

// Join moves the connection into a conversation room, leaving any previous one.
func (r *Registry) Join(id, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	r.leaveRoomLocked(conn)
	conn.conversationID = conversationID
	set, ok := r.byConversation[conversationID]
	if !ok {
		set = make(map[string]*Connection)
		r.byConversation[conversationID] = set
	}
	set[id] = conn
	conn.lastActivity = r.now()
	return true
}

// Leave removes the connection from its current room, if any.
func (r *Registry) Leave(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	r.leaveRoomLocked(conn)
	return true
}

func (r *Registry) leaveRoomLocked(conn *Connection) {
	if conn.conversationID == "" {
		return
	}
	if set, ok := r.byConversation[conn.conversationID]; ok {
		delete(set, conn.id)
		if len(set) == 0 {
			delete(r.byConversation, conn.conversationID)
		}
	}
	conn.conversationID = ""
}

func (r *Registry) leaveUserLocked(conn *Connection) {
	if conn.userID == "" {
		return
	}
	if set, ok := r.byUser[conn.userID]; ok {
		delete(set, conn.id)
		if len(set) == 0 {
			delete(r.byUser, conn.userID)
		}
	}
	conn.userID = ""
	conn.authenticated = false
}

// ConversationTargets snapshots the connections joined to a conversation.
func (r *Registry) ConversationTargets(conversationID string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return targetsLocked(r.byConversation[conversationID])
}

// UserTargets snapshots all of a user's connections regardless of room.
func (r *Registry) UserTargets(userID string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return targetsLocked(r.byUser[userID])
}

func targetsLocked(set map[string]*Connection) []Target {
	if len(set) == 0 {
		return nil
	}
	targets := make([]Target, 0, len(set))
	for _, conn := range set {
		targets = append(targets, Target{ID: conn.id, UserID: conn.userID, Sender: conn.sender})
	}
	return targets
}

// SweepIdle removes every connection idle for longer than idleFor and
// returns their targets so the caller can close the transports.
func (r *Registry) SweepIdle(now time.Time, idleFor time.Duration) []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Target
	for id, conn := range r.conns {
		if now.Sub(conn.lastActivity) > idleFor {
			evicted = append(evicted, Target{ID: id, UserID: conn.userID, Sender: conn.sender})
			r.removeLocked(id)
		}
	}
	return evicted
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
