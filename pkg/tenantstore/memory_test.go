package tenantstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantstore"
)

func initech() *tenant.Info {
	return &tenant.Info{
		ID:         "initech-id",
		Identifier: "initech",
		Name:       "Initech",
		Items:      map[string]string{"plan": "pro"},
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("add and get", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		ok, err := s.TryAdd(ctx, initech())
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.GetByID(ctx, "initech-id")
		require.NoError(t, err)
		if diff := cmp.Diff(initech(), got); diff != "" {
			t.Errorf("GetByID mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ignores case by default", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		_, err := s.TryAdd(ctx, initech())
		require.NoError(t, err)

		for _, id := range []string{"initech", "Initech", "INITECH"} {
			got, err := s.GetByIdentifier(ctx, id)
			require.NoError(t, err, id)
			assert.Equal(t, "initech-id", got.ID)
		}
	})

	t.Run("folds unicode case", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		_, err := s.TryAdd(ctx, &tenant.Info{ID: "1", Identifier: "straße"})
		require.NoError(t, err)

		got, err := s.GetByIdentifier(ctx, "STRASSE")
		require.NoError(t, err)
		assert.Equal(t, "1", got.ID)
	})

	t.Run("case sensitive store", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore(tenantstore.WithIgnoreCase(false))
		_, err := s.TryAdd(ctx, initech())
		require.NoError(t, err)

		_, err = s.GetByIdentifier(ctx, "INITECH")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

		ok, err := s.TryAdd(ctx, &tenant.Info{ID: "other", Identifier: "INITECH"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("duplicate identifier is rejected", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		ok, err := s.TryAdd(ctx, &tenant.Info{ID: "1", Identifier: "test"})
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.TryAdd(ctx, &tenant.Info{ID: "2", Identifier: "TEST"})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.TryAdd(ctx, &tenant.Info{ID: "1", Identifier: "other"})
		require.NoError(t, err)
		assert.False(t, ok, "duplicate id")
		assert.Equal(t, 1, s.Len())
	})

	t.Run("invalid records", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		_, err := s.TryAdd(ctx, nil)
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

		_, err = s.TryAdd(ctx, &tenant.Info{ID: " ", Identifier: "x"})
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

		_, err = s.GetByIdentifier(ctx, "")
		assert.ErrorIs(t, err, tenant.ErrInvalidIdentifier)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		_, err := s.TryAdd(ctx, initech())
		require.NoError(t, err)

		ok, err := s.TryRemove(ctx, "initech-id")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.TryRemove(ctx, "initech-id")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.GetByIdentifier(ctx, "initech")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("update", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		_, err := s.TryAdd(ctx, initech())
		require.NoError(t, err)
		_, err = s.TryAdd(ctx, &tenant.Info{ID: "acme-id", Identifier: "acme"})
		require.NoError(t, err)

		renamed := initech()
		renamed.Identifier = "initrode"
		ok, err := s.TryUpdate(ctx, renamed)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = s.GetByIdentifier(ctx, "initech")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		got, err := s.GetByIdentifier(ctx, "initrode")
		require.NoError(t, err)
		assert.Equal(t, "initech-id", got.ID)

		collision := initech()
		collision.Identifier = "ACME"
		ok, err = s.TryUpdate(ctx, collision)
		require.NoError(t, err)
		assert.False(t, ok, "identifier owned by another record")

		ok, err = s.TryUpdate(ctx, &tenant.Info{ID: "missing", Identifier: "missing"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		_, err := s.TryAdd(ctx, initech())
		require.NoError(t, err)

		got, err := s.GetByID(ctx, "initech-id")
		require.NoError(t, err)
		got.Name = "mutated"
		got.Items["plan"] = "free"

		again, err := s.GetByID(ctx, "initech-id")
		require.NoError(t, err)
		assert.Equal(t, "Initech", again.Name)
		assert.Equal(t, "pro", again.Items["plan"])
	})

	t.Run("concurrent adds of one identifier", func(t *testing.T) {
		t.Parallel()

		s := tenantstore.NewMemoryStore()
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for i := range 50 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.TryAdd(ctx, &tenant.Info{ID: fmt.Sprintf("id-%d", i), Identifier: "race"})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, won)
	})
}

func TestNewMemoryStoreFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("seeds records with default connection string", func(t *testing.T) {
		t.Parallel()

		s, err := tenantstore.NewMemoryStoreFrom([]*tenant.Info{
			{ID: "1", Identifier: "initech"},
			{ID: "2", Identifier: "acme", ConnectionString: "postgres://acme"},
		}, tenantstore.WithDefaultConnectionString("postgres://shared"))
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "acme", list[0].Identifier)
		assert.Equal(t, "postgres://acme", list[0].ConnectionString)
		assert.Equal(t, "postgres://shared", list[1].ConnectionString)
	})

	t.Run("duplicate fails", func(t *testing.T) {
		t.Parallel()

		_, err := tenantstore.NewMemoryStoreFrom([]*tenant.Info{
			{ID: "1", Identifier: "test"},
			{ID: "2", Identifier: "Test"},
		})
		assert.ErrorIs(t, err, tenantstore.ErrDuplicateIdentifier)
	})

	t.Run("blank identifier fails", func(t *testing.T) {
		t.Parallel()

		_, err := tenantstore.NewMemoryStoreFrom([]*tenant.Info{{ID: "1", Identifier: "   "}})
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)
	})
}
