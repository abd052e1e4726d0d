package main

import (
	"time"

	"github.com/dmitrymomot/multitenant/pkg/httpserver"
	"github.com/dmitrymomot/multitenant/pkg/tenantauth"
)

// Store drivers.
const (
	driverMemory   = "memory"
	driverFile     = "file"
	driverS3       = "s3"
	driverPostgres = "postgres"
	driverRedis    = "redis"
	driverMongo    = "mongo"
)

type appConfig struct {
	Env              string `env:"APP_ENV" envDefault:"development"`
	ServiceName      string `env:"APP_NAME" envDefault:"tenantd"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"tenantd"`
	// AdminToken enables the /admin/tenants API when set.
	AdminToken string `env:"ADMIN_TOKEN"`

	HTTP  httpserver.Config
	Auth  tenantauth.Config
	Store storeConfig
	Chain chainConfig
}

type storeConfig struct {
	Driver string `env:"TENANTS_STORE" envDefault:"memory"`
	// File seeds the memory store and backs the file driver.
	File                    string        `env:"TENANTS_FILE" envDefault:"tenants.yaml"`
	Section                 string        `env:"TENANTS_SECTION" envDefault:"multitenant"`
	IgnoreCase              bool          `env:"TENANTS_IGNORE_CASE" envDefault:"true"`
	DefaultConnectionString string        `env:"TENANTS_DEFAULT_CONNECTION_STRING"`
	WatchDebounce           time.Duration `env:"TENANTS_WATCH_DEBOUNCE" envDefault:"250ms"`
	CacheSize               int           `env:"TENANTS_CACHE_SIZE" envDefault:"1000"`
	CacheTTL                time.Duration `env:"TENANTS_CACHE_TTL" envDefault:"30s"`
}

type chainConfig struct {
	// Strategies in evaluation order. First match wins.
	Strategies   []string `env:"TENANT_STRATEGIES" envSeparator:"," envDefault:"remote_auth,route,host,header"`
	HostTemplate string   `env:"TENANT_HOST_TEMPLATE" envDefault:"__tenant__.*"`
	Header       string   `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
	RouteParam   string   `env:"TENANT_ROUTE_PARAM" envDefault:"__tenant__"`
	Static       string   `env:"TENANT_STATIC_IDENTIFIER"`
}
