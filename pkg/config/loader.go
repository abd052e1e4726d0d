// Package config fills env-tagged structs from the process environment,
// optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type cacheKey struct {
	typ    reflect.Type
	prefix string
}

// configCache holds one parsed value per (type, prefix).
type configCache struct {
	mu     sync.Mutex
	values map[cacheKey]any
}

var (
	globalCache = &configCache{values: make(map[cacheKey]any)}

	defaultEnvLoaded sync.Once
)

// LoadEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are an error.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrEnvFile, err)
	}
	return nil
}

// Load parses environment variables into v once per type; later calls for
// the same type return the cached value. A .env file in the working
// directory is loaded on first use if present.
//
//	type ServerConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg ServerConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	return LoadPrefixed(v, "")
}

// LoadPrefixed is Load with every variable name prefixed, so one struct type
// can be loaded for several components ("PRIMARY_", "REPLICA_").
func LoadPrefixed[T any](v *T, prefix string) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := cacheKey{typ: reflect.TypeFor[T](), prefix: prefix}

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	parsed, err := Parse[T](prefix)
	if err != nil {
		return err
	}
	globalCache.values[key] = parsed
	*v = parsed
	return nil
}

// Parse reads a fresh T from the environment, bypassing the cache.
func Parse[T any](prefix string) (T, error) {
	var v T
	if err := env.ParseWithOptions(&v, env.Options{Prefix: prefix}); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// ResetCache forgets every loaded configuration. Intended for tests.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.values = make(map[cacheKey]any)
}
