package tenantstore

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
)

// Option configures a store.
type Option func(*options)

type options struct {
	ignoreCase              bool
	defaultConnectionString string
	section                 string
	keyPrefix               string
	logger                  *slog.Logger
	onReload                []func(ctx context.Context, err error)
}

func defaultOptions() *options {
	return &options{
		ignoreCase: true,
		keyPrefix:  "{tenants}",
		logger:     slog.New(slog.DiscardHandler),
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithReloadHook registers a callback run after every ConfigStore reload
// attempt with its result.
func WithReloadHook(fn func(ctx context.Context, err error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onReload = append(o.onReload, fn)
		}
	}
}

// WithIgnoreCase sets whether identifier lookups fold case. Defaults to true.
func WithIgnoreCase(ignore bool) Option {
	return func(o *options) {
		o.ignoreCase = ignore
	}
}

// WithDefaultConnectionString fills ConnectionString for populated records
// that leave it empty.
func WithDefaultConnectionString(conn string) Option {
	return func(o *options) {
		o.defaultConnectionString = conn
	}
}

// WithSection selects the configuration section holding the tenants, as a
// dot separated path ("multitenant.stores.config"). Empty means the root.
func WithSection(path string) Option {
	return func(o *options) {
		o.section = strings.Trim(path, ".")
	}
}

// WithKeyPrefix sets the Redis key prefix. Keep a hash tag such as
// "{tenants}" so all keys land in one cluster slot.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithLogger sets the store logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// normalizeKey maps an identifier to its lookup key under the case policy.
// Folding is Unicode aware, so "Straße" and "STRASSE" share a key.
func normalizeKey(identifier string, ignoreCase bool) string {
	if !ignoreCase {
		return identifier
	}
	// cases.Caser is stateful, so each call gets its own.
	return cases.Fold().String(identifier)
}
