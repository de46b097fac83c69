package balance

import (
	"math/big"

	"github.com/layer-3/walletauth/core"
	"github.com/shopspring/decimal"
)

// DisplayPrecision is the number of fractional digits kept for display.
const DisplayPrecision = 6

// FormatUnits renders raw / 10^decimals truncated (never rounded up) to
// DisplayPrecision fractional digits, without trailing zeros.
func FormatUnits(raw *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(raw, -int32(decimals)).Truncate(DisplayPrecision).String()
}

// NewRecord builds a balance record; raw is copied.
func NewRecord(symbol string, raw *big.Int, decimals uint8) core.BalanceRecord {
	amount := new(big.Int).Set(raw)
	return core.BalanceRecord{
		Symbol:   symbol,
		Raw:      amount,
		Decimals: decimals,
		Display:  FormatUnits(amount, decimals),
	}
}
