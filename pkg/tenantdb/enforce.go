package tenantdb

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// MismatchMode decides what happens to a scoped entity whose tenant key
// differs from the active tenant.
type MismatchMode int

const (
	// MismatchThrow aborts the save with ErrTenantMismatch.
	MismatchThrow MismatchMode = iota
	// MismatchIgnore saves the entity with its own tenant key.
	MismatchIgnore
	// MismatchOverwrite replaces the entity's tenant key with the active tenant.
	MismatchOverwrite
)

// NotSetMode decides what happens to a modified or deleted scoped entity
// with an empty tenant key.
type NotSetMode int

const (
	// NotSetThrow aborts the save with ErrTenantNotSet.
	NotSetThrow NotSetMode = iota
	// NotSetOverwrite stamps the active tenant.
	NotSetOverwrite
)

// Policy combines both modes. The zero value throws in every case.
type Policy struct {
	NotSet   NotSetMode
	Mismatch MismatchMode
}

// EnforceTenantID materializes changes and checks every scoped entry
// against the active tenant info, which may be nil. Added entities with an
// empty key are stamped with info.ID. Nothing is stamped unless every entry
// passes, so an error leaves the entities as they were.
func EnforceTenantID(ctx context.Context, info *tenant.Info, reg *Registry, changes ChangeSet, policy Policy) error {
	if changes == nil {
		return ErrNilChangeSet
	}
	if err := changes.DetectChanges(ctx); err != nil {
		return fmt.Errorf("detect changes: %w", err)
	}

	var stamps []Scoped
	for _, e := range changes.Entries() {
		if e.Op == Unchanged || !reg.IsScoped(e.Type) {
			continue
		}
		s, ok := e.Entity.(Scoped)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotScopedEntity, e.Type)
		}
		if info == nil {
			return fmt.Errorf("%w: %s %s without an active tenant", ErrTenantNotSet, e.Op, e.Type)
		}

		current := s.TenantID()
		switch {
		case current == info.ID:
		case current == "" && e.Op == Added:
			stamps = append(stamps, s)
		case current == "":
			if policy.NotSet == NotSetThrow {
				return fmt.Errorf("%w: %s %s has no tenant key", ErrTenantNotSet, e.Op, e.Type)
			}
			stamps = append(stamps, s)
		default:
			switch policy.Mismatch {
			case MismatchIgnore:
			case MismatchOverwrite:
				stamps = append(stamps, s)
			default:
				return fmt.Errorf("%w: %s %s belongs to tenant %q, active tenant is %q",
					ErrTenantMismatch, e.Op, e.Type, current, info.ID)
			}
		}
	}

	for _, s := range stamps {
		s.SetTenantID(info.ID)
	}
	return nil
}
