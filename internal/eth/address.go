// Package eth holds the Ethereum specifics of wallet authentication: address
// canonicalization, the challenge message, personal_sign verification and the
// ERC-20 calls used for balance reads.
package eth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
)

// ParseAddress decodes s into its binary form.
//
// All-lower and all-upper hex are accepted as is; mixed case must carry a
// valid EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", core.ErrInvalidAddress, s)
	}

	addr := common.HexToAddress(s)
	digits := s
	if has0xPrefix(digits) {
		digits = digits[2:]
	}
	if isMixedCase(digits) && addr.Hex()[2:] != digits {
		return common.Address{}, fmt.Errorf("%w: bad checksum %q", core.ErrInvalidAddress, s)
	}

	return addr, nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
