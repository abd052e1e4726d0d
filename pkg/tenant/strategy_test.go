package tenant_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

func constant(name, id string) tenant.Strategy {
	return tenant.Func(name, func(context.Context, tenant.Request) (string, error) {
		return id, nil
	})
}

func TestChain(t *testing.T) {
	t.Parallel()

	t.Run("first non-empty identifier wins", func(t *testing.T) {
		t.Parallel()

		var thirdCalled atomic.Bool
		third := tenant.Func("third", func(context.Context, tenant.Request) (string, error) {
			thirdCalled.Store(true)
			return "other", nil
		})

		c := tenant.NewChain(nil, constant("first", ""), constant("second", "initech"), third)
		id, name := c.Identify(context.Background(), fakeRequest{})

		assert.Equal(t, "initech", id)
		assert.Equal(t, "second", name)
		assert.False(t, thirdCalled.Load())
	})

	t.Run("nothing matches", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewChain(nil, constant("a", ""), constant("b", ""))
		id, name := c.Identify(context.Background(), fakeRequest{})

		assert.Empty(t, id)
		assert.Empty(t, name)
	})

	t.Run("failing strategy counts as no match", func(t *testing.T) {
		t.Parallel()

		failing := tenant.Func("failing", func(context.Context, tenant.Request) (string, error) {
			return "ignored", errors.New("boom")
		})
		c := tenant.NewChain(nil, failing, constant("fallback", "acme"))
		id, name := c.Identify(context.Background(), fakeRequest{})

		assert.Equal(t, "acme", id)
		assert.Equal(t, "fallback", name)
	})

	t.Run("panicking strategy counts as no match", func(t *testing.T) {
		t.Parallel()

		panicking := tenant.Func("panicking", func(context.Context, tenant.Request) (string, error) {
			panic("unexpected")
		})
		c := tenant.NewChain(nil, panicking, constant("fallback", "acme"))

		assert.NotPanics(t, func() {
			id, _ := c.Identify(context.Background(), fakeRequest{})
			assert.Equal(t, "acme", id)
		})
	})

	t.Run("nil strategies are dropped", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewChain(nil, nil, constant("only", "x"), nil)
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, []string{"only"}, c.Names())
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := tenant.NewChain(nil, constant("a", "initech"))
		id, _ := c.Identify(ctx, fakeRequest{})
		assert.Empty(t, id)
	})
}
