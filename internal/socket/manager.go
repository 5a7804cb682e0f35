package socket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SessionManager tracks live chat connections by session id.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{active: make(map[string]*websocket.Conn)}
}

// Get returns the connection bound to sessionID, or nil.
func (m *SessionManager) Get(sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID]
}

// Register binds conn to sessionID, closing any connection it replaces.
func (m *SessionManager) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[sessionID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[sessionID] = conn
	slog.Debug("Chat connection registered", "session_id", sessionID)
}

// Unregister removes sessionID only if it is still bound to conn.
func (m *SessionManager) Unregister(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[sessionID]; ok && current == conn {
		delete(m.active, sessionID)
		slog.Debug("Chat connection unregistered", "session_id", sessionID)
	}
}

// Count returns the number of live connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll closes every live connection with a going-away status.
func (m *SessionManager) CloseAll(reason string) {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.active))
	for id, c := range m.active {
		conns = append(conns, c)
		delete(m.active, id)
	}
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, reason)
	}
	if len(conns) > 0 {
		slog.Info("Closed chat connections", "count", len(conns), "reason", reason)
	}
}
