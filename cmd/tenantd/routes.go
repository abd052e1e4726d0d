package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/multitenant/pkg/httpserver"
	"github.com/dmitrymomot/multitenant/pkg/requestid"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantauth"
	"github.com/dmitrymomot/multitenant/pkg/tenantmetrics"
	"github.com/dmitrymomot/multitenant/pkg/tenantoptions"
)

type routerDeps struct {
	resolver   *tenant.Resolver
	brandings  *tenantoptions.Cache[branding]
	auth       *tenantauth.Authenticator // nil when no provider is configured
	gatherer   prometheus.Gatherer
	checks     map[string]httpserver.Check
	adminToken string
	logger     *slog.Logger
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(d.logger, d.checks))
	r.Handle("/metrics", tenantmetrics.Handler(d.gatherer))

	if d.adminToken != "" {
		api := &adminAPI{
			store:     d.resolver.Store(),
			brandings: d.brandings,
			token:     d.adminToken,
			logger:    d.logger,
		}
		r.Route("/admin/tenants", api.routes)
	}

	// Route parameters are filled in after group middleware runs, so the
	// scope resolves lazily on the first RequireTenant.
	resolve := tenant.Middleware(d.resolver,
		tenant.WithLazyResolution(true),
		tenant.WithMiddlewareLogger(d.logger),
	)
	require := tenant.RequireTenant(nil)

	r.Group(func(r chi.Router) {
		r.Use(resolve, require)
		r.Get("/whoami", whoami)
		r.Get("/{__tenant__}/whoami", whoami)
		r.Get("/branding", brandingHandler(d.brandings, d.logger))
		r.Get("/{__tenant__}/branding", brandingHandler(d.brandings, d.logger))
		if d.auth != nil {
			r.Get("/auth/login", d.auth.ChallengeHandler())
			r.Get("/{__tenant__}/auth/login", d.auth.ChallengeHandler())
		}
	})

	if d.auth != nil {
		// The state must be opened before the scope captures the request.
		r.With(d.auth.CallbackMiddleware, resolve, require).
			Get("/auth/callback", callbackHandler(d.auth, d.logger))
	}

	return r
}
