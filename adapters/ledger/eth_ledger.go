package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// EthLedger implements the Ledger interface on top of a JSON-RPC node
type EthLedger struct {
	client *ethclient.Client
}

// Dial connects to the node at rawurl
func Dial(ctx context.Context, rawurl string) (*EthLedger, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger node: %w", err)
	}
	return NewEthLedger(client), nil
}

// NewEthLedger wraps an existing client
func NewEthLedger(client *ethclient.Client) *EthLedger {
	return &EthLedger{client: client}
}

var _ ports.Ledger = (*EthLedger)(nil)

// NativeBalance returns the latest balance of account in wei
func (l *EthLedger) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := l.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, classify("eth_getBalance", err)
	}
	return balance, nil
}

// CallContract executes a read-only call against the latest block
func (l *EthLedger) CallContract(ctx context.Context, contract common.Address, input []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &contract,
		Data: input,
	}
	output, err := l.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, classify("eth_call", err)
	}
	return output, nil
}

// Close releases the underlying connection
func (l *EthLedger) Close() {
	l.client.Close()
}

// classify separates transport failures, which may be retried, from errors
// the node reported about the call itself.
func classify(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", method, err)
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s: %w: %w", method, core.ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%s: %w: %w", method, core.ErrLedgerRejected, err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w: %w", method, core.ErrLedgerRejected, err)
	}

	return fmt.Errorf("%s: %w: %w", method, core.ErrUpstreamTimeout, err)
}
