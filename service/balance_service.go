package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
)

// Aggregator fetches all configured balances of an address.
type Aggregator interface {
	FetchAll(ctx context.Context, address common.Address) (*core.Balances, error)
}

// BalanceService answers authenticated balance queries
type BalanceService struct {
	sessions   *SessionIssuer
	aggregator Aggregator
}

// NewBalanceService creates a new balance service
func NewBalanceService(sessions *SessionIssuer, aggregator Aggregator) *BalanceService {
	return &BalanceService{
		sessions:   sessions,
		aggregator: aggregator,
	}
}

// GetBalances returns the balances of the address bound to credential.
// A rejected credential fails with ErrUnauthorized before any ledger call.
func (s *BalanceService) GetBalances(ctx context.Context, credential string) (*core.Balances, error) {
	session, err := s.Whoami(ctx, credential)
	if err != nil {
		return nil, err
	}

	return s.aggregator.FetchAll(ctx, session.Address)
}

// Whoami returns the session bound to credential
func (s *BalanceService) Whoami(ctx context.Context, credential string) (*core.Session, error) {
	session, err := s.sessions.Validate(ctx, credential)
	if err != nil {
		if core.IsCredentialError(err) {
			return nil, fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
		}
		return nil, err
	}
	return session, nil
}
