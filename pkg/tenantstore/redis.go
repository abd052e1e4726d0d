package tenantstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// Each tenant is a hash at <prefix>:id:<id> with fields "data" (JSON record)
// and "key" (normalized identifier). <prefix>:key:<key> holds the owning ID.
var (
	addScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'key', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1])
return 1
`)

	updateScript = redis.NewScript(`
local oldkey = redis.call('HGET', KEYS[1], 'key')
if not oldkey then
	return 0
end
local owner = redis.call('GET', KEYS[2])
if owner and owner ~= ARGV[1] then
	return 0
end
if oldkey ~= ARGV[3] then
	redis.call('DEL', ARGV[4] .. oldkey)
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'key', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1])
return 1
`)

	removeScript = redis.NewScript(`
local key = redis.call('HGET', KEYS[1], 'key')
if not key then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('DEL', ARGV[1] .. key)
return 1
`)
)

// RedisStore keeps tenants in Redis. Mutations run as Lua scripts, so each
// is atomic with respect to other clients.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ignoreCase bool
}

var _ tenant.Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, opts ...Option) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	return &RedisStore{client: client, prefix: o.keyPrefix, ignoreCase: o.ignoreCase}, nil
}

func (s *RedisStore) idKey(id string) string { return s.prefix + ":id:" + id }

func (s *RedisStore) keyPrefix() string { return s.prefix + ":key:" }

func (s *RedisStore) identifierKey(identifier string) string {
	return s.keyPrefix() + normalizeKey(identifier, s.ignoreCase)
}

func (s *RedisStore) TryAdd(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return false, fmt.Errorf("encode tenant: %w", err)
	}

	n, err := addScript.Run(ctx, s.client,
		[]string{s.idKey(info.ID), s.identifierKey(info.Identifier)},
		info.ID, data, normalizeKey(info.Identifier, s.ignoreCase),
	).Int()
	if err != nil {
		return false, fmt.Errorf("add tenant: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*tenant.Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *RedisStore) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Info, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	id, err := s.client.Get(ctx, s.identifierKey(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup tenant identifier: %w", err)
	}
	return s.load(ctx, id)
}

func (s *RedisStore) TryRemove(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	n, err := removeScript.Run(ctx, s.client, []string{s.idKey(id)}, s.keyPrefix()).Int()
	if err != nil {
		return false, fmt.Errorf("remove tenant: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) TryUpdate(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return false, fmt.Errorf("encode tenant: %w", err)
	}

	n, err := updateScript.Run(ctx, s.client,
		[]string{s.idKey(info.ID), s.identifierKey(info.Identifier)},
		info.ID, data, normalizeKey(info.Identifier, s.ignoreCase), s.keyPrefix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("update tenant: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*tenant.Info, error) {
	data, err := s.client.HGet(ctx, s.idKey(id), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	var info tenant.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode tenant: %w", err)
	}
	return &info, nil
}
