package tenant

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/multitenant/pkg/logger"
)

// Middleware attaches a per-request resolution scope to every request.
//
// By default the tenant is resolved before the next handler runs; store
// failures go to the error handler and unresolved requests continue without
// a tenant unless WithRequireTenant is set.
func Middleware(resolver *Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		errorHandler: defaultErrorHandler,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			scope := resolver.NewScope(r.Context(), NewHTTPRequest(r))
			ctx := WithScope(r.Context(), scope)
			if cfg.lazy {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			rc := scope.Resolve(ctx)
			if rc.Err != nil {
				cfg.errorHandler(w, r, rc.Err)
				return
			}
			if !rc.Resolved() && cfg.requireTenant {
				cfg.logger.DebugContext(ctx, "request rejected without tenant",
					slog.String("path", r.URL.Path),
					logger.Identifier(rc.Identifier),
				)
				cfg.errorHandler(w, r, ErrTenantNotFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant creates middleware that ensures a tenant is present in the context.
// With lazy resolution this is where resolution happens.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := Resolve(r.Context())
			switch {
			case rc == nil:
				errorHandler(w, r, ErrNoTenantInContext)
				return
			case rc.Err != nil:
				errorHandler(w, r, rc.Err)
				return
			case !rc.Resolved():
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
