package tenantauth_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantauth"
)

var secret = bytes.Repeat([]byte("k"), tenantauth.KeySize)

func TestStateCodec(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		c, err := tenantauth.NewStateCodec(secret)
		require.NoError(t, err)

		state, err := c.Seal(tenant.Properties{tenant.AuthPropertyKey: "initech", "return_to": "/inbox"})
		require.NoError(t, err)
		assert.NotContains(t, state, "initech")

		props, err := c.Open(state)
		require.NoError(t, err)
		assert.Equal(t, "initech", props[tenant.AuthPropertyKey])
		assert.Equal(t, "/inbox", props["return_to"])
	})

	t.Run("each seal is unique", func(t *testing.T) {
		t.Parallel()

		c, err := tenantauth.NewStateCodec(secret)
		require.NoError(t, err)

		a, err := c.Seal(tenant.Properties{"k": "v"})
		require.NoError(t, err)
		b, err := c.Seal(tenant.Properties{"k": "v"})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("tampered state", func(t *testing.T) {
		t.Parallel()

		c, err := tenantauth.NewStateCodec(secret)
		require.NoError(t, err)

		state, err := c.Seal(tenant.Properties{"k": "v"})
		require.NoError(t, err)

		flipped := []byte(state)
		mid := len(flipped) / 2
		if flipped[mid] == 'A' {
			flipped[mid] = 'g'
		} else {
			flipped[mid] = 'A'
		}

		_, err = c.Open(string(flipped))
		assert.ErrorIs(t, err, tenantauth.ErrInvalidState)

		_, err = c.Open("not base64 !")
		assert.ErrorIs(t, err, tenantauth.ErrInvalidState)

		_, err = c.Open("c2hvcnQ")
		assert.ErrorIs(t, err, tenantauth.ErrInvalidState)
	})

	t.Run("different secret cannot open", func(t *testing.T) {
		t.Parallel()

		a, err := tenantauth.NewStateCodec(secret)
		require.NoError(t, err)
		b, err := tenantauth.NewStateCodec(bytes.Repeat([]byte("x"), tenantauth.KeySize))
		require.NoError(t, err)

		state, err := a.Seal(tenant.Properties{"k": "v"})
		require.NoError(t, err)

		_, err = b.Open(state)
		assert.ErrorIs(t, err, tenantauth.ErrInvalidState)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		c, err := tenantauth.NewStateCodec(secret,
			tenantauth.WithStateTTL(time.Minute),
			tenantauth.WithClock(func() time.Time { return now }),
		)
		require.NoError(t, err)

		state, err := c.Seal(tenant.Properties{"k": "v"})
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = c.Open(state)
		assert.ErrorIs(t, err, tenantauth.ErrStateExpired)
	})

	t.Run("short secret", func(t *testing.T) {
		t.Parallel()

		_, err := tenantauth.NewStateCodec([]byte("short"))
		assert.ErrorIs(t, err, tenantauth.ErrInvalidSecret)
	})
}
