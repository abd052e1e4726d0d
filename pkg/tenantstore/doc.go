// Package tenantstore provides tenant.Store implementations.
//
//   - MemoryStore keeps records in process, guarded by a RWMutex.
//   - ConfigStore serves a read-only snapshot parsed from a YAML or JSON
//     document and swaps it atomically on Reload. FileSource and S3Source
//     feed it and can watch for changes.
//   - SQLStore, RedisStore and MongoStore persist records externally. Each
//     stores a normalized identifier key next to the original identifier so
//     case-insensitive uniqueness is enforced by the backend itself.
//   - CachedStore and LoggingStore decorate any other store.
//
// All stores fold identifiers with Unicode case folding unless constructed
// with WithIgnoreCase(false). Lookups that find nothing return
// tenant.ErrTenantNotFound; duplicate adds and colliding updates report false
// without an error.
//
// # Usage
//
//	store, err := tenantstore.NewConfigStore(ctx,
//		tenantstore.NewFileSource("tenants.yaml", time.Second, log),
//		tenantstore.WithSection("multitenant.stores.config"),
//	)
//	if err != nil {
//		return err
//	}
//	go store.Watch(ctx)
package tenantstore
