package tenantoptions_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantoptions"
)

func initech() *tenant.Info {
	return &tenant.Info{ID: "initech-id", Identifier: "initech", Name: "Initech"}
}

// countingPipeline counts how many times the base pipeline runs.
func countingPipeline(builds *atomic.Int32, delay time.Duration) *tenantoptions.Pipeline[branding] {
	return tenantoptions.NewPipeline[branding]().
		ConfigureAll(func(_ context.Context, b *branding) error {
			builds.Add(1)
			time.Sleep(delay)
			b.Title = "Default"
			return nil
		})
}

func TestCacheGetOrCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("applies tenant callback after pipeline", func(t *testing.T) {
		t.Parallel()

		var builds atomic.Int32
		c, err := tenantoptions.NewCache(countingPipeline(&builds, 0),
			tenantoptions.WithTenantFunc(func(b *branding, info *tenant.Info) {
				b.Title = b.Title + " " + info.Name
			}),
		)
		require.NoError(t, err)

		b, err := c.GetOrCreate(ctx, initech(), "")
		require.NoError(t, err)
		assert.Equal(t, "Default Initech", b.Title)

		again, err := c.GetOrCreate(ctx, initech(), "")
		require.NoError(t, err)
		assert.Same(t, b, again)
		assert.Equal(t, int32(1), builds.Load())
	})

	t.Run("builds once under concurrency", func(t *testing.T) {
		t.Parallel()

		var builds atomic.Int32
		c, err := tenantoptions.NewCache(countingPipeline(&builds, 20*time.Millisecond))
		require.NoError(t, err)

		const workers = 32
		results := make([]*branding, workers)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				b, err := c.GetOrCreate(ctx, initech(), "")
				assert.NoError(t, err)
				results[i] = b
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), builds.Load())
		for _, b := range results {
			assert.Same(t, results[0], b)
		}
	})

	t.Run("names and tenants are separate entries", func(t *testing.T) {
		t.Parallel()

		var builds atomic.Int32
		c, err := tenantoptions.NewCache(countingPipeline(&builds, 0))
		require.NoError(t, err)

		acme := &tenant.Info{ID: "acme-id", Identifier: "acme"}
		for _, info := range []*tenant.Info{initech(), acme} {
			for _, name := range []string{"", "email"} {
				_, err := c.GetOrCreate(ctx, info, name)
				require.NoError(t, err)
			}
		}
		assert.Equal(t, int32(4), builds.Load())
		assert.Equal(t, 4, c.Len())

		c.InvalidateAll("email")
		assert.Equal(t, 2, c.Len())

		c.InvalidateTenant("acme-id")
		assert.Equal(t, 1, c.Len())

		c.Clear()
		assert.Zero(t, c.Len())
	})

	t.Run("rebuilds after invalidate", func(t *testing.T) {
		t.Parallel()

		var builds atomic.Int32
		c, err := tenantoptions.NewCache(countingPipeline(&builds, 0))
		require.NoError(t, err)

		first, err := c.GetOrCreate(ctx, initech(), "")
		require.NoError(t, err)

		c.Invalidate("initech-id", "")

		second, err := c.GetOrCreate(ctx, initech(), "")
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Equal(t, int32(2), builds.Load())
	})

	t.Run("rebuilds when the record changes", func(t *testing.T) {
		t.Parallel()

		var builds atomic.Int32
		c, err := tenantoptions.NewCache(countingPipeline(&builds, 0),
			tenantoptions.WithTenantFunc(func(b *branding, info *tenant.Info) {
				b.Color, _ = info.Item("color")
			}),
		)
		require.NoError(t, err)

		info := initech()
		info.Items = map[string]string{"color": "red"}
		b, err := c.GetOrCreate(ctx, info, "")
		require.NoError(t, err)
		assert.Equal(t, "red", b.Color)

		info.Items["color"] = "blue"
		b, err = c.GetOrCreate(ctx, info, "")
		require.NoError(t, err)
		assert.Equal(t, "blue", b.Color)
		assert.Equal(t, int32(2), builds.Load())
	})

	t.Run("invalidating another key during a build keeps the result", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		entered := make(chan struct{})
		release := make(chan struct{})
		c, err := tenantoptions.NewCache(tenantoptions.NewPipeline[branding](),
			tenantoptions.WithTenantFunc(func(b *branding, info *tenant.Info) {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
				}
				b.Title = info.Name
			}),
		)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := c.GetOrCreate(ctx, initech(), "")
			done <- err
		}()

		<-entered
		c.Invalidate("globex-id", "email")
		c.InvalidateTenant("globex-id")
		c.InvalidateAll("email")
		close(release)
		require.NoError(t, <-done)

		_, err = c.GetOrCreate(ctx, initech(), "")
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("invalidating the key during a build discards the result", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		entered := make(chan struct{})
		release := make(chan struct{})
		c, err := tenantoptions.NewCache(tenantoptions.NewPipeline[branding](),
			tenantoptions.WithTenantFunc(func(b *branding, info *tenant.Info) {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
				}
				b.Title = info.Name
			}),
		)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := c.GetOrCreate(ctx, initech(), "")
			done <- err
		}()

		<-entered
		c.InvalidateTenant("initech-id")
		close(release)
		require.NoError(t, <-done)
		assert.Zero(t, c.Len())

		_, err = c.GetOrCreate(ctx, initech(), "")
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("failed builds are not cached", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		p := tenantoptions.NewPipeline[branding]().
			ConfigureAll(func(context.Context, *branding) error {
				if calls.Add(1) == 1 {
					return errors.New("vault unavailable")
				}
				return nil
			})
		c, err := tenantoptions.NewCache(p)
		require.NoError(t, err)

		_, err = c.GetOrCreate(ctx, initech(), "")
		assert.ErrorIs(t, err, tenantoptions.ErrConfigureFailed)
		assert.Zero(t, c.Len())

		_, err = c.GetOrCreate(ctx, initech(), "")
		assert.NoError(t, err)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("observer sees hits and misses", func(t *testing.T) {
		t.Parallel()

		var hits, misses atomic.Int32
		var builds atomic.Int32
		c, err := tenantoptions.NewCache(countingPipeline(&builds, 0),
			tenantoptions.WithObserver[branding](func(_ string, hit bool) {
				if hit {
					hits.Add(1)
				} else {
					misses.Add(1)
				}
			}),
		)
		require.NoError(t, err)

		for range 3 {
			_, err := c.GetOrCreate(ctx, initech(), "")
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), hits.Load())
		assert.Equal(t, int32(1), misses.Load())
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		_, err := tenantoptions.NewCache[branding](nil)
		assert.ErrorIs(t, err, tenantoptions.ErrNilPipeline)

		c, err := tenantoptions.NewCache(tenantoptions.NewPipeline[branding]())
		require.NoError(t, err)
		_, err = c.GetOrCreate(ctx, nil, "")
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)
	})
}
