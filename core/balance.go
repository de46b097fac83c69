package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the exponent of the ledger's base currency (wei per ether).
const NativeDecimals = 18

// Asset describes a balance source. A zero Contract means the native asset.
type Asset struct {
	Symbol   string
	Contract common.Address
	Native   bool
}

// BalanceRecord is the balance of a single asset.
type BalanceRecord struct {
	Symbol   string
	Raw      *big.Int // full precision, never converted through floating point
	Decimals uint8
	Display  string // Raw / 10^Decimals truncated to DisplayPrecision fractional digits
}

// Balances is the result of aggregating all configured assets for one address.
// An asset appears in exactly one of Records or Errors.
type Balances struct {
	Address common.Address
	Records map[string]BalanceRecord
	Errors  map[string]error
}
