// Command tenantd serves tenant-aware HTTP endpoints on top of the
// multitenant packages: it resolves the tenant of every request, serves
// per-tenant branding and exposes resolution metrics.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/multitenant/pkg/config"
	"github.com/dmitrymomot/multitenant/pkg/httpserver"
	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/requestid"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantauth"
	"github.com/dmitrymomot/multitenant/pkg/tenantmetrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("tenantd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	reg := prometheus.NewRegistry()
	metrics := tenantmetrics.New(cfg.MetricsNamespace)
	if err := errors.Join(
		metrics.Register(reg),
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	); err != nil {
		return err
	}

	stores, err := openStore(ctx, cfg.Store, metrics, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.ErrorContext(closeCtx, "store shutdown failed", logger.Error(err))
		}
	}()

	strategies, err := buildStrategies(cfg.Chain)
	if err != nil {
		return err
	}
	resolver, err := tenant.NewResolver(stores.store, strategies,
		append(metrics.ResolverOptions(), tenant.WithLogger(log))...,
	)
	if err != nil {
		return err
	}

	brandings, err := newBrandingCache(metrics.ObserveOptions, log)
	if err != nil {
		return err
	}

	var auth *tenantauth.Authenticator
	if cfg.Auth.Enabled() {
		if auth, err = newAuthenticator(cfg.Auth, log); err != nil {
			return err
		}
	}

	router := newRouter(routerDeps{
		resolver:   resolver,
		brandings:  brandings,
		auth:       auth,
		gatherer:   reg,
		checks:     stores.checks,
		adminToken: cfg.AdminToken,
		logger:     log,
	})

	log.InfoContext(ctx, "tenantd starting",
		logger.Store(cfg.Store.Driver),
		slog.Any("strategies", resolver.Strategies()),
		slog.Bool("auth", auth != nil),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.New(cfg.HTTP, log).Run(ctx, router)
	})
	if stores.watch != nil {
		g.Go(func() error {
			err := stores.watch(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			// Losing the watcher leaves the last snapshot in place.
			log.WarnContext(ctx, "tenant configuration watch stopped", logger.Error(err))
			return nil
		})
	}
	return g.Wait()
}

func newAuthenticator(cfg tenantauth.Config, log *slog.Logger) (*tenantauth.Authenticator, error) {
	codec, err := tenantauth.NewStateCodec([]byte(cfg.StateSecret), tenantauth.WithStateTTL(cfg.StateTTL))
	if err != nil {
		return nil, err
	}
	return tenantauth.New(cfg.OAuth2(), codec, tenantauth.WithLogger(log))
}
