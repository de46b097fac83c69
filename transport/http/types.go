package http

import "time"

// NonceResponse is returned by GET /auth/nonce
type NonceResponse struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyRequest is the body of POST /auth/verify
type VerifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Message   string `json:"message"`
}

// CredentialResponse is returned by POST /auth/verify
type CredentialResponse struct {
	Credential string    `json:"credential"`
	TokenType  string    `json:"token_type"`
	Address    string    `json:"address"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// BalanceEntry is one asset of a BalancesResponse
type BalanceEntry struct {
	Raw      string `json:"raw"`
	Decimals uint8  `json:"decimals"`
	Display  string `json:"display"`
}

// BalancesResponse is returned by GET /balances.
// Errors lists assets that could not be fetched.
type BalancesResponse struct {
	Address  string                  `json:"address"`
	Balances map[string]BalanceEntry `json:"balances"`
	Errors   map[string]string       `json:"errors,omitempty"`
}

// MeResponse is returned by GET /me
type MeResponse struct {
	Address   string    `json:"address"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
