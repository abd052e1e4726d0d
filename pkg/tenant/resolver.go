package tenant

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/multitenant/pkg/logger"
)

// ResolutionContext is the outcome of resolving one request.
type ResolutionContext struct {
	// Tenant is nil when the request did not resolve to a tenant.
	Tenant *Info
	// Strategy names the strategy that produced Identifier.
	Strategy string
	// Identifier is the raw value the strategy chain produced.
	Identifier string
	// Err records a store failure. Unknown identifiers are not errors.
	Err error
}

// Resolved reports whether a tenant was found.
func (rc *ResolutionContext) Resolved() bool {
	return rc != nil && rc.Tenant != nil
}

// Resolver runs the strategy chain and looks the identifier up in the store.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	chain         *Chain
	store         Store
	logger        *slog.Logger
	onResolved    []Hook
	onNotResolved []Hook
}

// NewResolver builds a resolver over store with strategies tried in the given order.
func NewResolver(store Store, strategies []Strategy, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	cfg := &resolverConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	chain := NewChain(cfg.logger, strategies...)
	if chain.Len() == 0 {
		return nil, errors.Join(ErrInvalidStrategy, errors.New("no strategies configured"))
	}

	return &Resolver{
		chain:         chain,
		store:         store,
		logger:        cfg.logger,
		onResolved:    cfg.onResolved,
		onNotResolved: cfg.onNotResolved,
	}, nil
}

// Store returns the store the resolver reads from.
func (r *Resolver) Store() Store { return r.store }

// Strategies returns the strategy names in evaluation order.
func (r *Resolver) Strategies() []string { return r.chain.Names() }

// Resolve runs a fresh resolution. Prefer Scope.Resolve inside a request so
// the work happens once.
func (r *Resolver) Resolve(ctx context.Context, req Request) *ResolutionContext {
	rc := &ResolutionContext{}
	if req == nil {
		rc.Err = ErrNilRequest
		return rc
	}

	rc.Identifier, rc.Strategy = r.chain.Identify(ctx, req)
	if rc.Identifier == "" {
		r.fire(ctx, r.onNotResolved, rc)
		return rc
	}

	info, err := r.store.GetByIdentifier(ctx, rc.Identifier)
	switch {
	case err == nil:
		rc.Tenant = info
	case errors.Is(err, ErrTenantNotFound):
		r.logger.DebugContext(ctx, "tenant identifier not found in store",
			logger.Identifier(rc.Identifier),
			logger.Strategy(rc.Strategy),
		)
	default:
		rc.Err = err
		r.logger.ErrorContext(ctx, "tenant store lookup failed",
			logger.Identifier(rc.Identifier),
			logger.Error(err),
		)
	}

	if rc.Resolved() {
		r.fire(ctx, r.onResolved, rc)
	} else {
		r.fire(ctx, r.onNotResolved, rc)
	}
	return rc
}

func (r *Resolver) fire(ctx context.Context, hooks []Hook, rc *ResolutionContext) {
	for _, h := range hooks {
		h(ctx, rc)
	}
}

// NewScope returns a per-request memo for req. ctx is the request context:
// resolution is cancelled when it is done, not when the context passed to
// Resolve is.
func (r *Resolver) NewScope(ctx context.Context, req Request) *Scope {
	return &Scope{resolver: r, req: req, base: ctx}
}

// Scope memoizes resolution for a single request. The first Resolve call runs
// the resolver; concurrent and later calls wait for and share its result.
// A Scope must not be shared between requests.
type Scope struct {
	resolver *Resolver
	req      Request
	base     context.Context

	once   sync.Once
	mu     sync.RWMutex
	result *ResolutionContext
}

// NewResolvedScope returns a scope that is already resolved to info.
// Background jobs use it to run tenant-scoped code outside a request.
func NewResolvedScope(info *Info) *Scope {
	s := &Scope{result: &ResolutionContext{Tenant: info}}
	s.once.Do(func() {})
	return s
}

// Resolve returns the memoized resolution, running it on first use. The run
// keeps the values of ctx but is cancelled only with the request context.
func (s *Scope) Resolve(ctx context.Context) *ResolutionContext {
	s.once.Do(func() {
		var rc *ResolutionContext
		if s.resolver == nil {
			rc = &ResolutionContext{Err: ErrNilStore}
		} else {
			run, done := s.runContext(ctx)
			rc = s.resolver.Resolve(run, s.req)
			done()
		}
		s.mu.Lock()
		s.result = rc
		s.mu.Unlock()
	})
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *Scope) runContext(ctx context.Context) (context.Context, func()) {
	if s.base == nil {
		return ctx, func() {}
	}
	run, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	if s.base.Err() != nil {
		cancel(context.Cause(s.base))
		return run, func() {}
	}
	stop := context.AfterFunc(s.base, func() { cancel(context.Cause(s.base)) })
	return run, func() {
		stop()
		cancel(nil)
	}
}

// Peek returns the result without triggering resolution.
func (s *Scope) Peek() (*ResolutionContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.result != nil
}
