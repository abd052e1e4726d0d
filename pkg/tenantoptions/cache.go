package tenantoptions

import (
	"context"
	"encoding/binary"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// TenantFunc applies tenant specific settings after the base pipeline ran.
type TenantFunc[T any] func(opts *T, info *tenant.Info)

type cacheKey struct {
	tenantID string
	name     string
}

type entry[T any] struct {
	value       *T
	fingerprint uint64
}

// flight tracks the builds running for one key. Invalidations matching the
// key bump gen so those builds do not store their result.
type flight struct {
	builds int
	gen    uint64
}

// Cache builds options per (tenant, name) on first use and keeps them until
// invalidated. A cached value is rebuilt when the tenant record it was built
// from changes. Returned values are shared between callers and must not be
// modified.
type Cache[T any] struct {
	pipeline  *Pipeline[T]
	perTenant TenantFunc[T]
	logger    *slog.Logger
	observe   func(name string, hit bool)

	mu      sync.RWMutex
	entries map[cacheKey]entry[T]
	flights map[cacheKey]*flight
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption[T any] func(*Cache[T])

// WithTenantFunc sets the per-tenant callback.
func WithTenantFunc[T any](fn TenantFunc[T]) CacheOption[T] {
	return func(c *Cache[T]) { c.perTenant = fn }
}

// WithCacheLogger sets the cache logger. Nil is ignored.
func WithCacheLogger[T any](log *slog.Logger) CacheOption[T] {
	return func(c *Cache[T]) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithObserver registers a callback invoked on every lookup with whether it
// was served from the cache.
func WithObserver[T any](fn func(name string, hit bool)) CacheOption[T] {
	return func(c *Cache[T]) { c.observe = fn }
}

func NewCache[T any](pipeline *Pipeline[T], opts ...CacheOption[T]) (*Cache[T], error) {
	if pipeline == nil {
		return nil, ErrNilPipeline
	}
	c := &Cache[T]{
		pipeline: pipeline,
		logger:   slog.New(slog.DiscardHandler),
		entries:  make(map[cacheKey]entry[T]),
		flights:  make(map[cacheKey]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetOrCreate returns the options named name for the tenant, building them
// if needed. Concurrent misses for the same key share a single build. Failed
// builds are not cached.
func (c *Cache[T]) GetOrCreate(ctx context.Context, info *tenant.Info, name string) (*T, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	key := cacheKey{tenantID: info.ID, name: name}
	fp := fingerprint(info)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.fingerprint == fp {
		c.report(name, true)
		return e.value, nil
	}
	c.report(name, false)

	flightKey := info.ID + "\x00" + name + "\x00" + strconv.FormatUint(fp, 16)
	record := info.Clone()
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.build(context.WithoutCancel(ctx), key, record, fp)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*T), nil
	}
}

func (c *Cache[T]) build(ctx context.Context, key cacheKey, info *tenant.Info, fp uint64) (*T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.fingerprint == fp {
		c.mu.Unlock()
		return e.value, nil
	}
	f := c.flights[key]
	if f == nil {
		f = &flight{}
		c.flights[key] = f
	}
	f.builds++
	gen := f.gen
	c.mu.Unlock()

	opts, err := c.pipeline.Build(ctx, key.name)
	if err == nil && c.perTenant != nil {
		c.perTenant(opts, info)
	}

	c.mu.Lock()
	// An invalidation of this key during the build makes the result stale.
	if err == nil && f.gen == gen {
		c.entries[key] = entry[T]{value: opts, fingerprint: fp}
	}
	if f.builds--; f.builds == 0 {
		delete(c.flights, key)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.ErrorContext(ctx, "options build failed",
			logger.TenantID(key.tenantID),
			logger.OptionsName(key.name),
			logger.Error(err),
		)
		return nil, err
	}
	c.logger.DebugContext(ctx, "options built",
		logger.TenantID(key.tenantID),
		logger.OptionsName(key.name),
	)
	return opts, nil
}

// Invalidate drops the cached options named name for one tenant.
func (c *Cache[T]) Invalidate(tenantID, name string) {
	key := cacheKey{tenantID: tenantID, name: name}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	if f := c.flights[key]; f != nil {
		f.gen++
	}
}

// InvalidateTenant drops every options instance of one tenant.
func (c *Cache[T]) InvalidateTenant(tenantID string) {
	c.invalidateWhere(func(k cacheKey) bool { return k.tenantID == tenantID })
}

// InvalidateAll drops the options named name for every tenant.
func (c *Cache[T]) InvalidateAll(name string) {
	c.invalidateWhere(func(k cacheKey) bool { return k.name == name })
}

// Clear drops everything.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	for _, f := range c.flights {
		f.gen++
	}
}

// Len returns the number of cached instances.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[T]) invalidateWhere(match func(cacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
		}
	}
	for k, f := range c.flights {
		if match(k) {
			f.gen++
		}
	}
}

func (c *Cache[T]) report(name string, hit bool) {
	if c.observe != nil {
		c.observe(name, hit)
	}
}

// fingerprint hashes every field of the record that a TenantFunc may read.
func fingerprint(info *tenant.Info) uint64 {
	d := xxhash.New()
	write := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(s)
	}
	write(info.ID)
	write(info.Identifier)
	write(info.Name)
	write(info.ConnectionString)

	keys := make([]string, 0, len(info.Items))
	for k := range info.Items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		write(k)
		write(info.Items[k])
	}
	return d.Sum64()
}
