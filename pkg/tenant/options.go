package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Hook observes a finished resolution.
type Hook func(ctx context.Context, rc *ResolutionContext)

type resolverConfig struct {
	logger        *slog.Logger
	onResolved    []Hook
	onNotResolved []Hook
}

// Option configures a Resolver.
type Option func(*resolverConfig)

// WithLogger sets the resolver logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *resolverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// OnResolved registers a hook run after a tenant was found.
func OnResolved(h Hook) Option {
	return func(c *resolverConfig) {
		if h != nil {
			c.onResolved = append(c.onResolved, h)
		}
	}
}

// OnNotResolved registers a hook run when no tenant was found.
func OnNotResolved(h Hook) Option {
	return func(c *resolverConfig) {
		if h != nil {
			c.onNotResolved = append(c.onNotResolved, h)
		}
	}
}

// ErrorHandler handles errors that occur during tenant resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// middlewareConfig holds middleware configuration.
type middlewareConfig struct {
	errorHandler  ErrorHandler
	skipPaths     []string
	requireTenant bool
	lazy          bool
	logger        *slog.Logger
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*middlewareConfig)

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithSkipPaths sets path prefixes that bypass tenant resolution.
func WithSkipPaths(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.skipPaths = append(c.skipPaths, paths...)
	}
}

// WithRequireTenant rejects requests that do not resolve to a tenant.
func WithRequireTenant(require bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.requireTenant = require
	}
}

// WithLazyResolution defers resolution until the first FromContext call.
// Needed when a strategy reads route parameters that the router fills in
// after the middleware has run.
func WithLazyResolution(lazy bool) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.lazy = lazy
	}
}

// WithMiddlewareLogger sets a logger for the middleware.
func WithMiddlewareLogger(logger *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrNoTenantInContext):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidIdentifier):
		http.Error(w, "Invalid tenant identifier", http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
