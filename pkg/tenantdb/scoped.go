package tenantdb

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Scoped is implemented by entities owned by exactly one tenant.
type Scoped interface {
	TenantID() string
	SetTenantID(id string)
}

// TenantKey is an embeddable Scoped implementation.
type TenantKey struct {
	Tenant string `json:"tenant_id" db:"tenant_id"`
}

func (k *TenantKey) TenantID() string { return k.Tenant }

func (k *TenantKey) SetTenantID(id string) { k.Tenant = id }

// Registry lists the entity types that are tenant scoped.
type Registry struct {
	mu    sync.RWMutex
	types map[string]struct{}
}

func NewRegistry(types ...string) *Registry {
	r := &Registry{types: make(map[string]struct{}, len(types))}
	r.Register(types...)
	return r
}

// Register marks entity types as tenant scoped.
func (r *Registry) Register(types ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		r.types[t] = struct{}{}
	}
}

func (r *Registry) IsScoped(entityType string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[entityType]
	return ok
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.types))
}

// Operation is the pending change of an entity.
type Operation int

const (
	Unchanged Operation = iota
	Added
	Modified
	Deleted
)

func (o Operation) String() string {
	switch o {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// Entry is one pending change.
type Entry struct {
	Type   string
	Entity any
	Op     Operation
}

// ChangeSet is a unit of work about to be persisted. DetectChanges must
// materialize every pending mutation so Entries reports the complete set.
type ChangeSet interface {
	DetectChanges(ctx context.Context) error
	Entries() []Entry
}
