package core

import (
	"context"
	"sort"
	"sync"

	"webvulnscan/internal/config"
	"webvulnscan/internal/models"
)

// Sessions is a caller-owned table of scan sessions keyed by ID.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions returns an empty table.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Add registers s and returns its ID.
func (t *Sessions) Add(s *Session) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID()] = s
	return s.ID()
}

// Start registers a new session for cfg and runs it in the background. done,
// if non-nil, is called with the outcome once the session is terminal.
func (t *Sessions) Start(ctx context.Context, cfg *config.ScanConfig, done func(*models.ScanResult, error), opts ...Option) *Session {
	s := NewSession(cfg, opts...)
	t.Add(s)
	go func() {
		res, err := s.Run(ctx)
		if done != nil {
			done(res, err)
		}
	}()
	return s
}

func (t *Sessions) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Remove forgets a session. It does not stop a running scan.
func (t *Sessions) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// List returns the registered sessions ordered by ID.
func (t *Sessions) List() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered sessions.
func (t *Sessions) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
