package tenant

import "context"

// Store maps identifiers to tenant records.
//
// Implementations must be safe for concurrent use. Lookups return
// ErrTenantNotFound when nothing matches; mutations report a missing or
// conflicting record through the boolean result, not through an error.
// Read-only stores return ErrNotSupported from the Try* methods.
type Store interface {
	// TryAdd inserts the record unless its ID or Identifier is already taken.
	TryAdd(ctx context.Context, info *Info) (bool, error)

	GetByID(ctx context.Context, id string) (*Info, error)

	// GetByIdentifier looks the record up honoring the store's case policy.
	GetByIdentifier(ctx context.Context, identifier string) (*Info, error)

	// TryRemove deletes the record with the given ID. Removing an absent
	// record returns false and no error.
	TryRemove(ctx context.Context, id string) (bool, error)

	// TryUpdate replaces the record with the same ID. It returns false if
	// the ID is unknown or the new Identifier belongs to another record.
	TryUpdate(ctx context.Context, info *Info) (bool, error)
}
