package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a per-process map. Sessions do not survive
// a restart; that is the documented default for this system.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	slog.Debug("Creating in-memory session store")
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the user's session, creating an idle one lazily.
func (m *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = New(userID)
		m.sessions[userID] = s
		slog.Debug("MemoryStore created session", "userID", userID)
	}
	return s, nil
}

// Save is a no-op for the in-memory store: callers mutate the live session
// returned by GetOrCreate. It exists so store-backed implementations can
// persist at the same call sites.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s
	return nil
}

// Reset returns the user's session to idle with no collected data.
func (m *MemoryStore) Reset(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.Reset()
		slog.Debug("MemoryStore reset session", "userID", userID)
	}
	return nil
}

// Delete removes the user's session.
func (m *MemoryStore) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	slog.Debug("MemoryStore deleted session", "userID", userID)
	return nil
}

// ActiveCount returns the number of sessions currently mid-form.
func (m *MemoryStore) ActiveCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Active() {
			count++
		}
	}
	return count, nil
}

// SweepIdle resets active sessions last touched before the cutoff.
func (m *MemoryStore) SweepIdle(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	swept := 0
	for _, s := range m.sessions {
		if s.Active() && s.UpdatedAt.Before(cutoff) {
			s.Reset()
			swept++
		}
	}
	if swept > 0 {
		slog.Info("MemoryStore swept stale sessions", "count", swept, "cutoff", cutoff)
	}
	return swept, nil
}
