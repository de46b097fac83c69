package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the read-only view of a ledger node.
//
// Transient transport failures are reported wrapping core.ErrUpstreamTimeout,
// errors reported by the node itself wrap core.ErrLedgerRejected.
type Ledger interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, contract common.Address, input []byte) ([]byte, error)
}
