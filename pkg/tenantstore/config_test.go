package tenantstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantstore"
)

const tenantsYAML = `
multitenant:
  stores:
    config:
      defaults:
        connection_string: postgres://shared
        items:
          theme: light
      tenants:
        - id: initech-id
          identifier: initech
          name: Initech
          items:
            theme: dark
        - id: acme-id
          identifier: acme
          name: Acme
          connection_string: postgres://acme
`

// swappableSource serves whichever document was set last.
type swappableSource struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (s *swappableSource) set(data string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.err = []byte(data), err
}

func (s *swappableSource) Load(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.err
}

func TestConfigStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("merges defaults into tenants", func(t *testing.T) {
		t.Parallel()

		s, err := tenantstore.NewConfigStore(ctx, tenantstore.BytesSource(tenantsYAML),
			tenantstore.WithSection("MultiTenant.Stores.Config"))
		require.NoError(t, err)

		info, err := s.GetByIdentifier(ctx, "INITECH")
		require.NoError(t, err)
		assert.Equal(t, "initech-id", info.ID)
		assert.Equal(t, "postgres://shared", info.ConnectionString)
		assert.Equal(t, "dark", info.Items["theme"])

		info, err = s.GetByID(ctx, "acme-id")
		require.NoError(t, err)
		assert.Equal(t, "postgres://acme", info.ConnectionString)
		assert.Equal(t, "light", info.Items["theme"])

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("json documents", func(t *testing.T) {
		t.Parallel()

		doc := `{"tenants": [{"id": "1", "identifier": "initech", "name": "Initech"}]}`
		s, err := tenantstore.NewConfigStore(ctx, tenantstore.BytesSource(doc))
		require.NoError(t, err)

		info, err := s.GetByIdentifier(ctx, "initech")
		require.NoError(t, err)
		assert.Equal(t, "Initech", info.Name)
	})

	t.Run("field names match regardless of case", func(t *testing.T) {
		t.Parallel()

		doc := `{"MultiTenant": {
			"Defaults": {"ConnectionString": "postgres://shared", "Items": {"Theme": "light"}},
			"Tenants": [
				{"Id": "1", "Identifier": "initech", "Name": "Initech"},
				{"ID": "2", "IDENTIFIER": "acme", "connectionString": "postgres://acme"}
			]
		}}`
		s, err := tenantstore.NewConfigStore(ctx, tenantstore.BytesSource(doc),
			tenantstore.WithSection("multitenant"))
		require.NoError(t, err)

		info, err := s.GetByIdentifier(ctx, "initech")
		require.NoError(t, err)
		assert.Equal(t, "1", info.ID)
		assert.Equal(t, "Initech", info.Name)
		assert.Equal(t, "postgres://shared", info.ConnectionString)
		assert.Equal(t, "light", info.Items["Theme"], "item keys keep their case")

		info, err = s.GetByID(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, "postgres://acme", info.ConnectionString)
	})

	t.Run("section without tenants", func(t *testing.T) {
		t.Parallel()

		_, err := tenantstore.NewConfigStore(ctx, tenantstore.BytesSource("multitenant: {foo: 1}"),
			tenantstore.WithSection("multitenant"))
		assert.ErrorIs(t, err, tenantstore.ErrInvalidSection)

		_, err = tenantstore.ParseSection([]byte("defaults: {name: x}"), "")
		assert.ErrorIs(t, err, tenantstore.ErrInvalidSection)

		section, err := tenantstore.ParseSection([]byte("tenants: []"), "")
		require.NoError(t, err)
		assert.Empty(t, section.Records())
	})

	t.Run("is read only", func(t *testing.T) {
		t.Parallel()

		s, err := tenantstore.NewConfigStore(ctx, tenantstore.BytesSource(tenantsYAML),
			tenantstore.WithSection("multitenant.stores.config"))
		require.NoError(t, err)

		_, err = s.TryAdd(ctx, &tenant.Info{ID: "x", Identifier: "x"})
		assert.ErrorIs(t, err, tenant.ErrNotSupported)
		_, err = s.TryUpdate(ctx, &tenant.Info{ID: "initech-id", Identifier: "x"})
		assert.ErrorIs(t, err, tenant.ErrNotSupported)
		_, err = s.TryRemove(ctx, "initech-id")
		assert.ErrorIs(t, err, tenant.ErrNotSupported)
	})

	t.Run("construction errors", func(t *testing.T) {
		t.Parallel()

		_, err := tenantstore.NewConfigStore(ctx, tenantstore.BytesSource(tenantsYAML),
			tenantstore.WithSection("missing.section"))
		assert.ErrorIs(t, err, tenantstore.ErrInvalidSection)

		dup := "tenants:\n  - {id: '1', identifier: test}\n  - {id: '2', identifier: TEST}\n"
		_, err = tenantstore.NewConfigStore(ctx, tenantstore.BytesSource(dup))
		assert.ErrorIs(t, err, tenantstore.ErrDuplicateIdentifier)

		_, err = tenantstore.NewConfigStore(ctx, tenantstore.BytesSource("tenants: ["))
		assert.ErrorIs(t, err, tenantstore.ErrInvalidSection)

		_, err = tenantstore.NewConfigStore(ctx, nil)
		assert.ErrorIs(t, err, tenantstore.ErrSourceUnavailable)
	})

	t.Run("failed reload keeps previous snapshot", func(t *testing.T) {
		t.Parallel()

		src := &swappableSource{}
		src.set("tenants:\n  - {id: '1', identifier: initech}\n", nil)
		s, err := tenantstore.NewConfigStore(ctx, src)
		require.NoError(t, err)

		src.set("tenants:\n  - {id: '1', identifier: a}\n  - {id: '1', identifier: b}\n", nil)
		assert.ErrorIs(t, s.Reload(ctx), tenantstore.ErrDuplicateIdentifier)

		src.set("", errors.New("bucket offline"))
		assert.ErrorIs(t, s.Reload(ctx), tenantstore.ErrSourceUnavailable)

		_, err = s.GetByIdentifier(ctx, "initech")
		assert.NoError(t, err)
	})

	t.Run("readers see a whole snapshot during reload", func(t *testing.T) {
		t.Parallel()

		oldDoc := "tenants:\n  - {id: 'a1', identifier: alpha}\n  - {id: 'b1', identifier: beta}\n"
		newDoc := "tenants:\n  - {id: 'a2', identifier: alpha}\n  - {id: 'b2', identifier: beta}\n"

		src := &swappableSource{}
		src.set(oldDoc, nil)
		s, err := tenantstore.NewConfigStore(ctx, src)
		require.NoError(t, err)

		var (
			stop  atomic.Bool
			wg    sync.WaitGroup
			mixed atomic.Int32
		)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for !stop.Load() {
					list, err := s.List(ctx)
					if err != nil || len(list) != 2 {
						mixed.Add(1)
						continue
					}
					// Both records must come from the same generation.
					if list[0].ID[1] != list[1].ID[1] {
						mixed.Add(1)
					}
				}
			}()
		}

		for i := range 200 {
			if i%2 == 0 {
				src.set(newDoc, nil)
			} else {
				src.set(oldDoc, nil)
			}
			require.NoError(t, s.Reload(ctx))
		}
		stop.Store(true)
		wg.Wait()

		assert.Zero(t, mixed.Load())
	})
}

func TestConfigStoreWatchFile(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenants:\n  - {id: '1', identifier: initech}\n"), 0o600))

	src := tenantstore.NewFileSource(path, 20*time.Millisecond, nil)
	s, err := tenantstore.NewConfigStore(ctx, src)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("tenants:\n  - {id: '2', identifier: acme}\n"), 0o600))

	assert.Eventually(t, func() bool {
		_, err := s.GetByIdentifier(ctx, "acme")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestConfigStoreWatchUnsupported(t *testing.T) {
	t.Parallel()

	s, err := tenantstore.NewConfigStore(context.Background(), tenantstore.BytesSource("tenants: []"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Watch(context.Background()), tenantstore.ErrWatchNotSupported)
}
