// Package signer provides a wallet backed by a local private key, standing in
// for a browser wallet in the CLI client and in tests.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/internal/eth"
)

// KeySigner signs personal messages with a single in-process key
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner creates a signer for key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// FromHex creates a signer from a hex encoded secp256k1 private key
func FromHex(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// FromKeystore decrypts a V3 keystore file
func FromKeystore(path, passphrase string) (*KeySigner, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return NewKeySigner(key.PrivateKey), nil
}

// Address returns the account of the signer
func (s *KeySigner) Address() common.Address {
	return s.address
}

// RequestAccounts returns the single account of the signer
func (s *KeySigner) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{s.address}, nil
}

// SignMessage produces a personal_sign signature over message
func (s *KeySigner) SignMessage(ctx context.Context, account common.Address, message string) ([]byte, error) {
	if account != s.address {
		return nil, fmt.Errorf("unknown account %s", account.Hex())
	}
	return eth.SignPersonal(s.key, []byte(message))
}
