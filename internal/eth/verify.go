package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignatureLength = errors.New("signature must be 65 bytes")
	ErrInvalidRecoveryID      = errors.New("invalid signature recovery id")
	ErrInvalidSignatureValues = errors.New("invalid signature values")
)

// PersonalSignVerifier verifies EIP-191 personal_sign signatures
type PersonalSignVerifier struct{}

// Verify reports whether signature over message recovers to claimed.
func (PersonalSignVerifier) Verify(message []byte, signature []byte, claimed common.Address) bool {
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return recovered == claimed
}

// RecoverAddress returns the account that produced signature over the
// EIP-191 hash of message. The recovery id may be 0/1 or 27/28.
func RecoverAddress(message []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignatureLength
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)

	switch v := sig[crypto.RecoveryIDOffset]; v {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] = v - 27 // Transform yellow paper V from 27/28 to 0/1
	default:
		return common.Address{}, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, v)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, ErrInvalidSignatureValues
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SignPersonal signs message the way wallets implement personal_sign,
// with the recovery id encoded as 27/28.
func SignPersonal(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
