package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// KeyIssuer hands out the credential a session passes to the dispatcher.
type KeyIssuer interface {
	TestKey(ctx context.Context) (string, error)
}

// Manager owns the live sessions of a server process.
type Manager struct {
	base   Config
	keys   KeyIssuer
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager that builds sessions from base. When keys is
// non-nil every new session fetches its dispatch credential from it once.
func NewManager(base Config, keys KeyIssuer) *Manager {
	logger := base.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		base:     base,
		keys:     keys,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and returns its id.
func (m *Manager) Create(ctx context.Context) (string, *Session) {
	id := uuid.NewString()
	cfg := m.base
	cfg.Logger = m.logger.With(zap.String("session_id", id))

	if m.keys != nil {
		key, err := m.keys.TestKey(ctx)
		if err != nil {
			// Dispatches will surface the query service's auth error.
			cfg.Logger.Warn("failed to obtain dispatch key", zap.Error(err))
		} else {
			cfg.DispatchKey = key
		}
	}

	session := NewSession(cfg)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	cfg.Logger.Info("session created")
	return id, session
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete cancels any active turn and forgets the session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Cancel()
	m.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepIdle deletes sessions that have been idle longer than maxIdle and
// returns how many were removed. Sessions with an active turn are kept.
func (m *Manager) SweepIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		since, idle := s.idleSince()
		if idle && since.Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.Info("session expired", zap.String("session_id", id), zap.Duration("max_idle", maxIdle))
	}
	return len(expired)
}

// ExpireIdle runs SweepIdle every interval until ctx is done. A non-positive
// maxIdle disables expiry.
func (m *Manager) ExpireIdle(ctx context.Context, interval, maxIdle time.Duration) error {
	if maxIdle <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = maxIdle
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.SweepIdle(maxIdle)
		}
	}
}
