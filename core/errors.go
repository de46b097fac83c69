package core

import "errors"

var (
	ErrInvalidAddress            = errors.New("invalid address")
	ErrChallengeExpiredOrUnknown = errors.New("challenge expired or unknown")
	ErrChallengeRateLimited      = errors.New("challenge requested too soon")
	ErrAuthenticationFailed      = errors.New("authentication failed")

	ErrCredentialExpired  = errors.New("credential has expired")
	ErrCredentialTampered = errors.New("credential is malformed or tampered")
	ErrCredentialRevoked  = errors.New("credential has been revoked")
	ErrUnauthorized       = errors.New("unauthorized")

	// ErrUpstreamTimeout marks a transient ledger failure that may be retried.
	ErrUpstreamTimeout = errors.New("ledger node unavailable")
	// ErrLedgerRejected marks an error reported by the ledger node itself, e.g. a reverted call.
	ErrLedgerRejected     = errors.New("ledger node rejected the call")
	ErrBalanceUnavailable = errors.New("balance unavailable")
	ErrAggregationFailed  = errors.New("balance aggregation failed")
)

// IsCredentialError reports whether err comes from the credential layer.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredentialExpired) ||
		errors.Is(err, ErrCredentialTampered) ||
		errors.Is(err, ErrCredentialRevoked) ||
		errors.Is(err, ErrUnauthorized)
}
