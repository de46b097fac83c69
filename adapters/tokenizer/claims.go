package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims of a session credential.
// Subject holds the checksummed address, ID the session id used for revocation.
type SessionClaims struct {
	jwt.RegisteredClaims
}
