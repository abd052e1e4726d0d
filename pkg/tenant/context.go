package tenant

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/multitenant/pkg/logger"
)

// scopeKey is a private type to prevent collisions with other context keys.
type scopeKey struct{}

// WithScope attaches a request scope to the context.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the request scope, if any.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// WithTenant attaches an already resolved tenant to the context.
func WithTenant(ctx context.Context, info *Info) context.Context {
	return WithScope(ctx, NewResolvedScope(info))
}

// Resolve returns the memoized resolution for the request carried by ctx,
// running it on first use. It returns nil if ctx has no scope.
func Resolve(ctx context.Context) *ResolutionContext {
	s, ok := ScopeFromContext(ctx)
	if !ok {
		return nil
	}
	return s.Resolve(ctx)
}

// FromContext retrieves the tenant for the current request.
// Returns nil, false if no tenant is resolved.
func FromContext(ctx context.Context) (*Info, bool) {
	rc := Resolve(ctx)
	if !rc.Resolved() {
		return nil, false
	}
	return rc.Tenant, true
}

// IDFromContext retrieves just the tenant ID from the context.
func IDFromContext(ctx context.Context) (string, bool) {
	info, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return info.ID, true
}

// MustFromContext panics if no tenant is resolved. Use only in handlers that
// sit behind RequireTenant.
func MustFromContext(ctx context.Context) *Info {
	info, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return info
}

// LoggerExtractor enriches log records with the tenant of the current request.
// It never triggers resolution.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		s, ok := ScopeFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		rc, ok := s.Peek()
		if !ok || !rc.Resolved() {
			return slog.Attr{}, false
		}
		return logger.Group("tenant",
			logger.TenantID(rc.Tenant.ID),
			logger.Identifier(rc.Tenant.Identifier),
		), true
	}
}
