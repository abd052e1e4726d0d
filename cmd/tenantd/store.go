package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrymomot/multitenant/pkg/config"
	"github.com/dmitrymomot/multitenant/pkg/httpserver"
	"github.com/dmitrymomot/multitenant/pkg/mongo"
	"github.com/dmitrymomot/multitenant/pkg/pg"
	"github.com/dmitrymomot/multitenant/pkg/redis"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantmetrics"
	"github.com/dmitrymomot/multitenant/pkg/tenantstore"
)

// backend is an opened store with what the process needs to supervise it.
type backend struct {
	store  tenant.Store
	checks map[string]httpserver.Check
	// watch runs until ctx is done. Nil when the store cannot reload.
	watch   func(ctx context.Context) error
	closers []func(ctx context.Context) error
}

func (b *backend) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// openStore builds the store chosen by cfg.Driver. Remote stores get a
// read-through cache; every store is wrapped for logging.
func openStore(ctx context.Context, cfg storeConfig, m *tenantmetrics.Metrics, log *slog.Logger) (*backend, error) {
	opts := []tenantstore.Option{
		tenantstore.WithIgnoreCase(cfg.IgnoreCase),
		tenantstore.WithDefaultConnectionString(cfg.DefaultConnectionString),
		tenantstore.WithSection(cfg.Section),
		tenantstore.WithLogger(log),
		tenantstore.WithReloadHook(func(_ context.Context, err error) { m.ObserveReload(err) }),
	}

	b := &backend{checks: map[string]httpserver.Check{}}
	var (
		store  tenant.Store
		err    error
		remote bool
	)

	switch cfg.Driver {
	case driverMemory:
		store, err = openMemory(ctx, cfg, log, opts)

	case driverFile:
		var cs *tenantstore.ConfigStore
		cs, err = tenantstore.NewConfigStore(ctx, tenantstore.NewFileSource(cfg.File, cfg.WatchDebounce, log), opts...)
		if err == nil {
			store, b.watch = cs, cs.Watch
		}

	case driverS3:
		var s3cfg tenantstore.S3Config
		if err = config.Load(&s3cfg); err != nil {
			return nil, err
		}
		var src *tenantstore.S3Source
		if src, err = tenantstore.NewS3Source(ctx, s3cfg, tenantstore.WithS3Logger(log)); err != nil {
			return nil, err
		}
		var cs *tenantstore.ConfigStore
		cs, err = tenantstore.NewConfigStore(ctx, src, opts...)
		if err == nil {
			store, b.watch = cs, cs.Watch
		}

	case driverPostgres:
		store, err = openPostgres(ctx, b, log, opts)
		remote = true

	case driverRedis:
		var rcfg redis.Config
		if err = config.Load(&rcfg); err != nil {
			return nil, err
		}
		client, cerr := redis.Connect(ctx, rcfg)
		if cerr != nil {
			return nil, cerr
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.checks["redis"] = redis.Healthcheck(client)
		store, err = tenantstore.NewRedisStore(client, append(opts, tenantstore.WithKeyPrefix(rcfg.KeyPrefix))...)
		remote = true

	case driverMongo:
		var mcfg mongo.Config
		if err = config.Load(&mcfg); err != nil {
			return nil, err
		}
		client, cerr := mongo.New(ctx, mcfg)
		if cerr != nil {
			return nil, cerr
		}
		b.closers = append(b.closers, client.Disconnect)
		b.checks["mongo"] = mongo.Healthcheck(client)
		var ms *tenantstore.MongoStore
		if ms, err = tenantstore.NewMongoStore(client.Database(mcfg.Database), opts...); err == nil {
			err = ms.EnsureIndexes(ctx)
			store = ms
		}
		remote = true

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Join(err, b.Close(context.WithoutCancel(ctx)))
	}

	if remote {
		store = tenantstore.NewCachedStore(store, cfg.CacheSize, cfg.CacheTTL, opts...)
	}
	probe := store
	b.store = tenantstore.NewLoggingStore(store, cfg.Driver, log)
	b.checks["store"] = func(ctx context.Context) error {
		_, err := probe.GetByID(ctx, "readiness-probe")
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil
		}
		return err
	}
	return b, nil
}

// openMemory seeds the store from cfg.File when it exists.
func openMemory(ctx context.Context, cfg storeConfig, log *slog.Logger, opts []tenantstore.Option) (tenant.Store, error) {
	data, err := tenantstore.NewFileSource(cfg.File, 0, log).Load(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		log.InfoContext(ctx, "no seed file, starting with an empty store", slog.String("path", cfg.File))
		return tenantstore.NewMemoryStore(opts...), nil
	}
	if err != nil {
		return nil, err
	}
	section, err := tenantstore.ParseSection(data, cfg.Section)
	if err != nil {
		return nil, err
	}
	return tenantstore.NewMemoryStoreFrom(section.Records(), opts...)
}

func openPostgres(ctx context.Context, b *backend, log *slog.Logger, opts []tenantstore.Option) (tenant.Store, error) {
	var pcfg pg.Config
	if err := config.Load(&pcfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })
	b.checks["postgres"] = pg.Healthcheck(pool)

	if err := pg.Migrate(ctx, pool, pcfg, tenantstore.Migrations(), log); err != nil {
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	b.closers = append(b.closers, func(context.Context) error { return db.Close() })
	return tenantstore.NewSQLStore(db, opts...)
}
