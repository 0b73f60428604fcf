// Package speech streams browser speech recognition into session drafts over
// WebSocket.
package speech

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Manager tracks the live speech connection of each session.
type Manager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{
		active: make(map[string]*websocket.Conn),
	}
}

// Get returns the active connection for a session.
func (m *Manager) Get(sessionKey string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionKey]
}

// Len returns the number of live connections.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register makes conn the session's connection. A previous connection is
// closed in the background once the lock is released, so a peer that stops
// reading cannot stall other sessions or the new stream.
func (m *Manager) Register(sessionKey string, conn *websocket.Conn) {
	m.mu.Lock()
	existing, ok := m.active[sessionKey]
	m.active[sessionKey] = conn
	m.mu.Unlock()

	slog.Info("Speech stream registered", "session_id", sessionKey)
	if ok && existing != conn {
		go func() {
			_ = existing.Close(websocket.StatusNormalClosure, "speech replaced")
		}()
	}
}

// Unregister removes conn if it is still the session's connection and
// reports whether it did. It returns false once conn has been replaced or
// closed through Close.
func (m *Manager) Unregister(sessionKey string, conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[sessionKey]; ok && current == conn {
		delete(m.active, sessionKey)
		slog.Info("Speech stream unregistered", "session_id", sessionKey)
		return true
	}
	return false
}

// Close terminates the session's connection, if any. Used on logout and
// when a session expires.
func (m *Manager) Close(sessionKey string) {
	m.mu.Lock()
	conn, ok := m.active[sessionKey]
	delete(m.active, sessionKey)
	m.mu.Unlock()

	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	slog.Info("Speech stream closed", "session_id", sessionKey)
}
