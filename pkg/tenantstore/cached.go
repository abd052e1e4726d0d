package tenantstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/multitenant/pkg/cache"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// DefaultCacheSize bounds the number of cached lookups.
const DefaultCacheSize = 1000

// CachedStore is a read-through cache in front of a slower store. Lookups
// are cached for ttl; mutations made through the cache evict the affected
// record. Changes made directly on the backing store become visible once
// their entries expire.
type CachedStore struct {
	next       tenant.Store
	entries    *cache.LRUCache[string, *tenant.Info]
	ignoreCase bool

	// epoch changes on every invalidation. A lookup started in an older
	// epoch does not cache its result.
	mu    sync.Mutex
	epoch uint64
}

var _ tenant.Store = (*CachedStore)(nil)

// NewCachedStore wraps next. The case policy option must match next's.
func NewCachedStore(next tenant.Store, size int, ttl time.Duration, opts ...Option) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	o := applyOptions(opts)
	return &CachedStore{
		next:       next,
		entries:    cache.NewLRUCache[string, *tenant.Info](size, cache.WithTTL(ttl)),
		ignoreCase: o.ignoreCase,
	}
}

func (s *CachedStore) idKey(id string) string { return "id:" + id }

func (s *CachedStore) identifierKey(identifier string) string {
	return "key:" + normalizeKey(identifier, s.ignoreCase)
}

func (s *CachedStore) GetByID(ctx context.Context, id string) (*tenant.Info, error) {
	if info, ok := s.entries.Get(s.idKey(id)); ok {
		return info.Clone(), nil
	}
	epoch := s.currentEpoch()
	info, err := s.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.put(info, epoch)
	return info, nil
}

func (s *CachedStore) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Info, error) {
	if info, ok := s.entries.Get(s.identifierKey(identifier)); ok {
		return info.Clone(), nil
	}
	epoch := s.currentEpoch()
	info, err := s.next.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	s.put(info, epoch)
	return info, nil
}

func (s *CachedStore) TryAdd(ctx context.Context, info *tenant.Info) (bool, error) {
	return s.next.TryAdd(ctx, info)
}

func (s *CachedStore) TryRemove(ctx context.Context, id string) (bool, error) {
	ok, err := s.next.TryRemove(ctx, id)
	s.Invalidate(id)
	return ok, err
}

func (s *CachedStore) TryUpdate(ctx context.Context, info *tenant.Info) (bool, error) {
	ok, err := s.next.TryUpdate(ctx, info)
	if info != nil {
		s.Invalidate(info.ID)
	}
	return ok, err
}

// Invalidate drops every cached entry for the tenant with the given ID.
func (s *CachedStore) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.entries.RemoveFunc(func(_ string, info *tenant.Info) bool {
		return info.ID == id
	})
}

// Purge drops all cached entries.
func (s *CachedStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.entries.Clear()
}

func (s *CachedStore) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *CachedStore) put(info *tenant.Info, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	c := info.Clone()
	s.entries.Put(s.idKey(c.ID), c)
	s.entries.Put(s.identifierKey(c.Identifier), c)
}
