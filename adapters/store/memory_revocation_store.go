package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const sweepInterval = time.Minute

// MemoryRevocationStore keeps revoked session ids in memory until the
// session would have expired anyway.
type MemoryRevocationStore struct {
	mu        sync.RWMutex
	revoked   map[string]time.Time // session id -> credential expiry
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryRevocationStore creates a new in-memory revocation store
func NewMemoryRevocationStore() ports.RevocationStore {
	return newMemoryRevocationStore(time.Now)
}

func newMemoryRevocationStore(now func() time.Time) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked:   make(map[string]time.Time),
		lastSweep: now(),
		now:       now,
	}
}

// Revoke denies session until its expiry
func (s *MemoryRevocationStore) Revoke(_ context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.revoked[session.ID]; !ok || session.ExpiresAt.After(until) {
		s.revoked[session.ID] = session.ExpiresAt
	}

	if now.Sub(s.lastSweep) >= sweepInterval {
		for id, until := range s.revoked {
			if !now.Before(until) {
				delete(s.revoked, id)
			}
		}
		s.lastSweep = now
	}

	return nil
}

// IsRevoked reports whether sessionID is denied
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.revoked[sessionID]
	return ok && s.now().Before(until), nil
}

// Len returns the number of denylist entries, expired ones included until the next sweep.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}
