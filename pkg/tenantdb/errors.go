package tenantdb

import "errors"

var (
	// ErrTenantMismatch is returned when a scoped entity belongs to another tenant.
	ErrTenantMismatch = errors.New("tenantdb: entity tenant does not match the active tenant")

	// ErrTenantNotSet is returned when scoped entities are saved without an
	// active tenant, or with an empty tenant key under the Throw policy.
	ErrTenantNotSet = errors.New("tenantdb: tenant not set")

	// ErrNotScopedEntity is returned when an entity of a registered type does
	// not implement Scoped.
	ErrNotScopedEntity = errors.New("tenantdb: registered entity does not implement Scoped")

	ErrNilChangeSet = errors.New("tenantdb: change set is nil")
)
