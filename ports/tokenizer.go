package ports

import "github.com/layer-3/walletauth/core"

// Tokenizer converts between sessions and sealed credentials
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)

	// TokenToSession verifies integrity and expiry of the credential.
	// It fails with core.ErrCredentialExpired or core.ErrCredentialTampered.
	TokenToSession(token string) (*core.Session, error)
}
