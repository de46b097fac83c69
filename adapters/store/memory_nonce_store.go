package store

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// MemoryNonceStore keeps outstanding challenges in process memory.
// A single mutex linearizes Put and Take across all addresses.
type MemoryNonceStore struct {
	challenges map[common.Address]core.Challenge
	mu         sync.Mutex
	now        func() time.Time
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore() ports.NonceStore {
	return newMemoryNonceStore(time.Now)
}

func newMemoryNonceStore(now func() time.Time) *MemoryNonceStore {
	return &MemoryNonceStore{
		challenges: make(map[common.Address]core.Challenge),
		now:        now,
	}
}

// Put stores the challenge, replacing the previous one for the address
func (s *MemoryNonceStore) Put(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *challenge
	s.challenges[stored.Address] = stored

	ttl := stored.ExpiresAt.Sub(s.now())
	if ttl < 0 {
		ttl = 0
	}
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Only delete if the challenge was not replaced in the meantime
		if current, exists := s.challenges[stored.Address]; exists && current.Nonce == stored.Nonce {
			delete(s.challenges, stored.Address)
		}
	})

	return nil
}

// Take removes and returns the outstanding challenge for address
func (s *MemoryNonceStore) Take(ctx context.Context, address common.Address) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, exists := s.challenges[address]
	if !exists {
		return nil, core.ErrChallengeExpiredOrUnknown
	}
	delete(s.challenges, address)

	if challenge.Expired(s.now()) {
		return nil, core.ErrChallengeExpiredOrUnknown
	}

	return &challenge, nil
}
