package tenantauth

import "errors"

var (
	// ErrInvalidSecret is returned when the state secret is shorter than KeySize.
	ErrInvalidSecret = errors.New("tenantauth: state secret must be at least 32 bytes")

	// ErrInvalidState is returned when a state value cannot be opened.
	ErrInvalidState = errors.New("tenantauth: invalid state")

	// ErrStateExpired is returned when a state value is older than its TTL.
	ErrStateExpired = errors.New("tenantauth: state expired")

	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("tenantauth: missing authorization code")

	ErrKeyDerivationFailed = errors.New("tenantauth: key derivation failed")
	ErrNilConfig           = errors.New("tenantauth: oauth2 config is nil")
)
