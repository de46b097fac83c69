package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// NonceBytes is the entropy of a challenge nonce.
const NonceBytes = 32

// NonceManager issues and consumes single-use challenges.
// At most one challenge is outstanding per address: issuing replaces the previous one.
type NonceManager struct {
	store ports.NonceStore
	ttl   time.Duration
	now   func() time.Time
}

// NewNonceManager creates a nonce manager whose challenges live for ttl
func NewNonceManager(store ports.NonceStore, ttl time.Duration, now func() time.Time) *NonceManager {
	if now == nil {
		now = time.Now
	}
	return &NonceManager{
		store: store,
		ttl:   ttl,
		now:   now,
	}
}

// Issue creates a fresh challenge for address, replacing any outstanding one
func (m *NonceManager) Issue(ctx context.Context, address common.Address) (*core.Challenge, error) {
	nonceBytes := make([]byte, NonceBytes)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := m.now().UTC().Truncate(time.Second)
	challenge := &core.Challenge{
		Address:   address,
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Put(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return challenge, nil
}

// Take removes the outstanding challenge for address and returns it if still valid.
// The challenge is gone afterwards whatever the outcome.
func (m *NonceManager) Take(ctx context.Context, address common.Address) (*core.Challenge, error) {
	challenge, err := m.store.Take(ctx, address)
	if err != nil {
		return nil, err
	}

	if challenge.Address != address || challenge.Expired(m.now()) {
		return nil, core.ErrChallengeExpiredOrUnknown
	}

	return challenge, nil
}

// Consume reports whether nonce is the valid outstanding nonce of address,
// deleting the outstanding challenge in any case.
func (m *NonceManager) Consume(ctx context.Context, address common.Address, nonce string) (bool, error) {
	challenge, err := m.Take(ctx, address)
	if errors.Is(err, core.ErrChallengeExpiredOrUnknown) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(challenge.Nonce), []byte(nonce)) == 1, nil
}
