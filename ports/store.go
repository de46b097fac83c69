package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
)

// NonceStore keeps the single outstanding challenge per address
type NonceStore interface {
	// Put stores the challenge, replacing any outstanding challenge for the same address.
	Put(ctx context.Context, challenge *core.Challenge) error

	// Take atomically removes and returns the outstanding challenge for address.
	// It returns core.ErrChallengeExpiredOrUnknown when there is none or it has expired.
	Take(ctx context.Context, address common.Address) (*core.Challenge, error)
}

// RevocationStore is the credential denylist, keyed by session id.
// Entries only need to outlive the credential they deny.
type RevocationStore interface {
	Revoke(ctx context.Context, session *core.Session) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
