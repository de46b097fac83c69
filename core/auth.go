package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Challenge represents an outstanding authentication challenge.
// At most one challenge is outstanding per address; issuing a new one replaces it.
type Challenge struct {
	Address   common.Address `json:"address"`    // Account the challenge was issued to
	Nonce     string         `json:"nonce"`      // Random single-use value embedded in the message
	IssuedAt  time.Time      `json:"issued_at"`  // When the challenge was created
	ExpiresAt time.Time      `json:"expires_at"` // When the challenge stops being accepted
}

// Expired reports whether the challenge is no longer valid at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session represents an authenticated session bound to an address
type Session struct {
	ID        string         // Unique session identifier, used as the credential id for revocation
	Address   common.Address // Account proven by the signature
	IssuedAt  time.Time      // When the session was created
	ExpiresAt time.Time      // When the credential stops validating
}
