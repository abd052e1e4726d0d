package tenantstore

import (
	"context"
	"sync"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// MemoryStore keeps tenants in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu  sync.RWMutex
	idx *index
}

var _ tenant.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. Identifier lookups ignore case
// unless WithIgnoreCase(false) is given.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{idx: newIndex(o.ignoreCase, 0)}
}

// NewMemoryStoreFrom returns a store seeded with records. A duplicate ID or
// identifier fails with ErrDuplicateIdentifier; an invalid record fails with
// tenant.ErrInvalidTenant.
func NewMemoryStoreFrom(records []*tenant.Info, opts ...Option) (*MemoryStore, error) {
	o := applyOptions(opts)
	idx, err := populate(records, o.ignoreCase, o.defaultConnectionString)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{idx: idx}, nil
}

func (s *MemoryStore) TryAdd(_ context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.add(info), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*tenant.Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.getByID(id)
}

func (s *MemoryStore) GetByIdentifier(_ context.Context, identifier string) (*tenant.Info, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.getByIdentifier(identifier)
}

func (s *MemoryStore) TryRemove(_ context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.remove(id), nil
}

func (s *MemoryStore) TryUpdate(_ context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.update(info), nil
}

// List returns all tenants ordered by identifier.
func (s *MemoryStore) List(context.Context) ([]*tenant.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.list(), nil
}

// Len returns the number of stored tenants.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.len()
}
