// Package tenantmetrics exposes Prometheus metrics for tenant resolution and
// per-tenant options caching.
package tenantmetrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// Resolution outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeNotFound  = "not_found"
	OutcomeUnmatched = "unmatched"
	OutcomeError     = "error"
)

// Metrics holds the collectors. Create one per process and Register it.
type Metrics struct {
	Resolutions    *prometheus.CounterVec
	OptionsLookups *prometheus.CounterVec
	StoreReloads   *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	return &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_resolutions_total",
				Help:      "Tenant resolutions by winning strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		OptionsLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_options_lookups_total",
				Help:      "Per-tenant options lookups by options name and cache result",
			},
			[]string{"options", "result"},
		),
		StoreReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tenant_store_reloads_total",
				Help:      "Configuration store reloads by result",
			},
			[]string{"result"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range []prometheus.Collector{m.Resolutions, m.OptionsLookups, m.StoreReloads} {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolverOptions returns resolver hooks that count resolutions.
func (m *Metrics) ResolverOptions() []tenant.Option {
	return []tenant.Option{
		tenant.OnResolved(m.observeResolution),
		tenant.OnNotResolved(m.observeResolution),
	}
}

func (m *Metrics) observeResolution(_ context.Context, rc *tenant.ResolutionContext) {
	outcome := OutcomeResolved
	switch {
	case rc.Err != nil:
		outcome = OutcomeError
	case rc.Identifier == "":
		outcome = OutcomeUnmatched
	case !rc.Resolved():
		outcome = OutcomeNotFound
	}
	strategy := rc.Strategy
	if strategy == "" {
		strategy = "none"
	}
	m.Resolutions.WithLabelValues(strategy, outcome).Inc()
}

// ObserveOptions counts an options cache lookup. Its signature matches
// tenantoptions.WithObserver.
func (m *Metrics) ObserveOptions(name string, hit bool) {
	if name == "" {
		name = "default"
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.OptionsLookups.WithLabelValues(name, result).Inc()
}

// ObserveReload counts a configuration store reload.
func (m *Metrics) ObserveReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.StoreReloads.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
