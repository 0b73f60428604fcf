package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/neuroscanx/internal/auth"
)

// EvictCallback is called with the ID of each session removed by the sweeper.
type EvictCallback func(sessionID string)

// Registry owns the sessions of all tabs, keyed by session ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	auth     auth.Authenticator
	now      func() time.Time
}

// NewRegistry creates a registry whose sessions authenticate with a.
func NewRegistry(a auth.Authenticator) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		auth:     a,
		now:      time.Now,
	}
}

// Get returns the session for id if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	if s, ok := r.Get(id); ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := New(id, r.auth)
	s.now = r.now
	s.lastSeen = r.now()
	r.sessions[id] = s
	slog.Debug("Session created", "session_id", id)
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than ttl. Sessions with an
// outstanding analysis are kept. It returns the removed IDs.
func (r *Registry) Sweep(ttl time.Duration) []string {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, s := range r.sessions {
		if s.Busy() || s.LastSeen().After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, id)
	}
	return evicted
}

// StartSweeper runs a background goroutine that periodically evicts idle
// sessions until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval, ttl time.Duration, onEvict EvictCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				evicted := r.Sweep(ttl)
				if len(evicted) == 0 {
					continue
				}
				for _, id := range evicted {
					if onEvict != nil {
						onEvict(id)
					}
				}
				slog.Info("Session sweeper evicted idle sessions", "count", len(evicted), "remaining", r.Len())
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
