package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Signer is the wallet holding the user's keys. Key material never crosses this interface.
type Signer interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SignMessage(ctx context.Context, account common.Address, message string) ([]byte, error)
}
