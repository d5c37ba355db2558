package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore is an in-memory implementation of app.AdminSessions.
// Expired tokens are rejected on read; the janitor reclaims their entries
// on a slow cadence so the map cannot grow without bound.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]time.Time),
	}
}

// NewSessionStoreWithClock is test-only for deterministic expiry.
func NewSessionStoreWithClock(ttl time.Duration, clock func() time.Time) *SessionStore {
	s := NewSessionStore(ttl)
	s.clock = clock
	return s
}

func (s *SessionStore) Create(_ context.Context) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = s.clock().Add(s.ttl)
	s.mu.Unlock()
	return token, nil
}

func (s *SessionStore) Valid(_ context.Context, token string) bool {
	s.mu.RLock()
	expiry, ok := s.sessions[token]
	s.mu.RUnlock()
	return ok && s.clock().Before(expiry)
}

func (s *SessionStore) Revoke(_ context.Context, token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Sweep drops every expired session and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, expiry := range s.sessions {
		if !now.Before(expiry) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Janitor sweeps on the given cadence until ctx is done. The production
// cadence is daily; sessions are only housekeeping, so precision is not a
// concern.
func (s *SessionStore) Janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
