package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/logger"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/ports"
)

// Auth attempt results recorded in metrics and logs.
const (
	ResultSuccess  = "success"
	ResultUnknown  = "challenge_unknown"
	ResultMismatch = "message_mismatch"
	ResultBadProof = "bad_signature"
	ResultBadInput = "invalid_address"
)

// IssuedChallenge is what a client needs to sign in: the challenge and the exact message to sign.
type IssuedChallenge struct {
	Challenge *core.Challenge
	Message   string
}

// AuthService handles the challenge-response handshake.
//
// Per address the handshake moves Unchallenged -> Challenged on
// RequestChallenge and back to Unchallenged on SubmitProof whatever the
// outcome, issuing a session credential on success.
type AuthService struct {
	nonces   *NonceManager
	sessions *SessionIssuer
	verifier ports.SignatureVerifier
	domain   eth.ChallengeDomain

	limiter  *ChallengeLimiter
	eventPub ports.EventPublisher
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithChallengeLimiter enables the per-address challenge interval.
func WithChallengeLimiter(limiter *ChallengeLimiter) AuthOption {
	return func(s *AuthService) {
		s.limiter = limiter
	}
}

// WithEventPublisher sets the publisher for login and logout events.
func WithEventPublisher(pub ports.EventPublisher) AuthOption {
	return func(s *AuthService) {
		s.eventPub = pub
	}
}

// WithAuthLogger sets the logger.
func WithAuthLogger(log *slog.Logger) AuthOption {
	return func(s *AuthService) {
		s.log = log
	}
}

// WithAuthMetrics sets the metrics sink.
func WithAuthMetrics(m *metrics.Metrics) AuthOption {
	return func(s *AuthService) {
		s.metrics = m
	}
}

// WithAuthClock overrides the clock used by the rate limiter.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces *NonceManager,
	sessions *SessionIssuer,
	verifier ports.SignatureVerifier,
	domain eth.ChallengeDomain,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		nonces:   nonces,
		sessions: sessions,
		verifier: verifier,
		domain:   domain,
		eventPub: events.NopPublisher{},
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestChallenge issues a fresh challenge for address, invalidating any outstanding one
func (s *AuthService) RequestChallenge(ctx context.Context, address string) (*IssuedChallenge, error) {
	addr, err := eth.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	if !s.limiter.Allow(addr, s.now()) {
		return nil, core.ErrChallengeRateLimited
	}

	challenge, err := s.nonces.Issue(ctx, addr)
	if err != nil {
		return nil, err
	}

	s.metrics.ChallengeIssued()
	s.log.Debug("challenge issued", "address", addr.Hex(), "expires_at", challenge.ExpiresAt)

	return &IssuedChallenge{
		Challenge: challenge,
		Message:   s.domain.Message(challenge),
	}, nil
}

// SubmitProof verifies a signature over the outstanding challenge of address and
// issues a session credential. The challenge is consumed whatever the outcome,
// so a failed attempt requires a new challenge.
//
// message is optional; when given it must equal the challenge message exactly.
// A malformed address fails like any other proof, with ErrAuthenticationFailed.
func (s *AuthService) SubmitProof(ctx context.Context, address, signature, message string) (string, *core.Session, error) {
	addr, err := eth.ParseAddress(address)
	if err != nil {
		s.reject(address, ResultBadInput)
		return "", nil, fmt.Errorf("%w: %v", core.ErrAuthenticationFailed, err)
	}

	challenge, err := s.nonces.Take(ctx, addr)
	if err != nil {
		if errors.Is(err, core.ErrChallengeExpiredOrUnknown) {
			s.reject(addr.Hex(), ResultUnknown)
		}
		return "", nil, err
	}

	expected := s.domain.Message(challenge)
	if message != "" && message != expected {
		s.reject(addr.Hex(), ResultMismatch)
		return "", nil, core.ErrAuthenticationFailed
	}

	sig, err := decodeSignature(signature)
	if err != nil || !s.verifier.Verify([]byte(expected), sig, addr) {
		s.reject(addr.Hex(), ResultBadProof)
		return "", nil, core.ErrAuthenticationFailed
	}

	credential, session, err := s.sessions.Issue(ctx, addr)
	if err != nil {
		return "", nil, err
	}

	s.metrics.AuthAttempt(ResultSuccess)
	s.log.Info("wallet authenticated", "address", addr.Hex(), "session_id", session.ID)

	if err := s.eventPub.PublishLogin(ctx, addr.Hex(), session.ID); err != nil {
		// The session is valid regardless of event delivery
		s.log.Warn("failed to publish login event", "session_id", session.ID, "error", err)
	}

	return credential, session, nil
}

// Disconnect revokes credential
func (s *AuthService) Disconnect(ctx context.Context, credential string) error {
	session, err := s.sessions.Revoke(ctx, credential)
	if err != nil {
		return err
	}

	s.log.Info("session revoked", "address", session.Address.Hex(), "session_id", session.ID)

	if err := s.eventPub.PublishLogout(ctx, session.Address.Hex(), session.ID); err != nil {
		s.log.Warn("failed to publish logout event", "session_id", session.ID, "error", err)
	}

	return nil
}

func (s *AuthService) reject(address, reason string) {
	s.metrics.AuthAttempt(reason)
	s.log.Info("authentication failed", "address", address, "reason", reason)
}

// decodeSignature accepts hex with or without the 0x prefix.
func decodeSignature(signature string) ([]byte, error) {
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return sig, nil
}
