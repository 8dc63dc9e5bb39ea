package tenancy

import "errors"

// Rejection reasons for the context-resolution pipeline. All of them are
// terminal for the request; authorization failures are never retried.
var (
	// ErrCredentialMissing is returned for a protected route without a token.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrCredentialInvalid covers malformed tokens and bad signatures.
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrCredentialExpired covers a valid signature past its expiry.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrTenantUnresolved means no resolution method produced an organization
	// on a route that requires one.
	ErrTenantUnresolved = errors.New("tenant unresolved")

	// ErrTenantSpoofAttempt means an explicit organization parameter was
	// supplied without a matching verified claim.
	ErrTenantSpoofAttempt = errors.New("tenant spoof attempt")
)
