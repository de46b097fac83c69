package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// SessionIssuer mints, validates and revokes session credentials.
// Credentials are stateless signed tokens; revocation is a denylist keyed
// by session id that lives as long as the credential would have.
type SessionIssuer struct {
	tokenizer   ports.Tokenizer
	revocations ports.RevocationStore
	ttl         time.Duration
	now         func() time.Time
}

// NewSessionIssuer creates a session issuer with the given credential lifetime
func NewSessionIssuer(tokenizer ports.Tokenizer, revocations ports.RevocationStore, ttl time.Duration, now func() time.Time) *SessionIssuer {
	if now == nil {
		now = time.Now
	}
	return &SessionIssuer{
		tokenizer:   tokenizer,
		revocations: revocations,
		ttl:         ttl,
		now:         now,
	}
}

// Issue creates a credential bound to address
func (s *SessionIssuer) Issue(ctx context.Context, address common.Address) (string, *core.Session, error) {
	// token timestamps have second precision
	now := s.now().UTC().Truncate(time.Second)
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	credential, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session credential: %w", err)
	}

	return credential, session, nil
}

// Validate checks integrity, expiry and revocation of credential and
// returns the session it is bound to.
func (s *SessionIssuer) Validate(ctx context.Context, credential string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(credential)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check credential revocation: %w", err)
	}
	if revoked {
		return nil, core.ErrCredentialRevoked
	}

	return session, nil
}

// Revoke invalidates credential before its natural expiry
func (s *SessionIssuer) Revoke(ctx context.Context, credential string) (*core.Session, error) {
	session, err := s.Validate(ctx, credential)
	if err != nil {
		return nil, err
	}

	if !s.now().Before(session.ExpiresAt) {
		return nil, core.ErrCredentialExpired
	}

	if err := s.revocations.Revoke(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to revoke credential: %w", err)
	}

	return session, nil
}
