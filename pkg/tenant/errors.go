package tenant

import "errors"

var (
	// ErrTenantNotFound is returned by stores when no record matches.
	// Resolution treats it as "unresolved", not as a failure.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidIdentifier is returned when an identifier argument is empty or malformed.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrInvalidTenant is returned when a record is nil or misses its ID or Identifier.
	ErrInvalidTenant = errors.New("invalid tenant record")

	// ErrNoTenantInContext is returned when no tenant is found in context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrNotSupported is returned by read-only stores from mutating operations.
	ErrNotSupported = errors.New("operation not supported by tenant store")

	// ErrInvalidTemplate is returned when a host template cannot be compiled.
	ErrInvalidTemplate = errors.New("invalid host template")

	// ErrInvalidStrategy is returned when a strategy is misconfigured.
	ErrInvalidStrategy = errors.New("invalid tenant strategy")

	// ErrStrategyFailed wraps errors raised while a strategy was evaluated.
	ErrStrategyFailed = errors.New("tenant strategy failed")

	ErrNilStore   = errors.New("tenant store is nil")
	ErrNilRequest = errors.New("request is nil")
)
