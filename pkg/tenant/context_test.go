package tenant_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	t.Run("with tenant", func(t *testing.T) {
		t.Parallel()

		info := testTenant("initech")
		ctx := tenant.WithTenant(context.Background(), info)

		got, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, info, got)

		id, ok := tenant.IDFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "initech-id", id)

		assert.Equal(t, info, tenant.MustFromContext(ctx))
	})

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()

		_, ok := tenant.FromContext(ctx)
		assert.False(t, ok)
		_, ok = tenant.IDFromContext(ctx)
		assert.False(t, ok)
		assert.Nil(t, tenant.Resolve(ctx))
		assert.Panics(t, func() { tenant.MustFromContext(ctx) })
	})

	t.Run("from context resolves lazily", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		store.On("GetByIdentifier", mock.Anything, "initech").Return(testTenant("initech"), nil)

		r, err := tenant.NewResolver(store, []tenant.Strategy{tenant.NewBasePathStrategy()})
		require.NoError(t, err)

		ctx := tenant.WithScope(context.Background(), r.NewScope(context.Background(), fakeRequest{path: "/initech"}))
		store.AssertNotCalled(t, "GetByIdentifier", mock.Anything, mock.Anything)

		for range 3 {
			info, ok := tenant.FromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, "initech", info.Identifier)
		}
		store.AssertNumberOfCalls(t, "GetByIdentifier", 1)
	})
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := tenant.LoggerExtractor()

	t.Run("resolved tenant", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithTenant(context.Background(), testTenant("initech"))
		attr, ok := extract(ctx)
		require.True(t, ok)
		assert.Equal(t, "tenant", attr.Key)
		assert.Equal(t, slog.KindGroup, attr.Value.Kind())
	})

	t.Run("unresolved scope is not resolved by logging", func(t *testing.T) {
		t.Parallel()

		store := &MockStore{}
		r, err := tenant.NewResolver(store, []tenant.Strategy{tenant.NewBasePathStrategy()})
		require.NoError(t, err)

		ctx := tenant.WithScope(context.Background(), r.NewScope(context.Background(), fakeRequest{path: "/initech"}))
		_, ok := extract(ctx)
		assert.False(t, ok)
		store.AssertNotCalled(t, "GetByIdentifier", mock.Anything, mock.Anything)
	})

	t.Run("no scope", func(t *testing.T) {
		t.Parallel()

		_, ok := extract(context.Background())
		assert.False(t, ok)
	})
}
