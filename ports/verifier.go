package ports

import "github.com/ethereum/go-ethereum/common"

// SignatureVerifier checks that signature over message was produced by claimed.
// Implementations are pure and safe for concurrent use.
type SignatureVerifier interface {
	Verify(message []byte, signature []byte, claimed common.Address) bool
}
