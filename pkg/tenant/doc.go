// Package tenant resolves, per request, which tenant is in effect.
//
// Resolution is a two step pipeline. An ordered chain of strategies extracts a
// candidate identifier from the request, and a Store maps that identifier to a
// tenant record. The outcome is memoized in a per-request Scope so the work runs
// at most once however many handlers ask for it.
//
// # Architecture
//
//  1. Strategies - Extract an identifier from host, path, route, header or auth state
//  2. Store      - Load the tenant record for an identifier (see package tenantstore)
//  3. Resolver   - Run the chain, query the store, report the ResolutionContext
//  4. Scope      - Memoize the ResolutionContext for one request
//  5. Middleware - Attach a Scope to every request and enforce policies
//
// # Usage
//
//	import "github.com/dmitrymomot/multitenant/pkg/tenant"
//
//	store := tenantstore.NewMemoryStore()
//	host, err := tenant.NewHostStrategy("__tenant__.example.com")
//	if err != nil {
//		return err
//	}
//
//	resolver, err := tenant.NewResolver(store, []tenant.Strategy{
//		host,
//		tenant.NewHeaderStrategy(""),
//	}, tenant.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	router.Use(tenant.Middleware(resolver,
//		tenant.WithSkipPaths("/health", "/metrics"),
//	))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		info, ok := tenant.FromContext(r.Context())
//		if !ok {
//			// no tenant for this request
//			return
//		}
//		_ = info.Identifier
//	}
//
// # Strategies
//
// Strategies are evaluated in registration order and the first non-empty
// identifier wins. A strategy that fails is logged and skipped.
//
//   - StaticStrategy: fixed identifier
//   - BasePathStrategy: first path segment ("/acme/dashboard")
//   - HostStrategy: host template with a __tenant__ segment ("__tenant__.*")
//   - RouteStrategy: chi route parameter, "__tenant__" by default
//   - HeaderStrategy: request header, "X-Tenant-ID" by default
//   - RemoteAuthStrategy: identifier carried through an external login redirect
//
// # Unresolved requests
//
// An unknown identifier or an empty chain result is not an error. The
// ResolutionContext simply has no Tenant. Store failures are recorded in
// ResolutionContext.Err and routed to the middleware's error handler.
package tenant
