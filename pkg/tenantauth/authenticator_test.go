package tenantauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantauth"
	"github.com/dmitrymomot/multitenant/pkg/tenantstore"
)

func newAuthenticator(t *testing.T, tokenURL string) (*tenantauth.Authenticator, *tenantauth.StateCodec) {
	t.Helper()

	codec, err := tenantauth.NewStateCodec(secret)
	require.NoError(t, err)

	cfg := tenantauth.Config{
		ClientID:    "client",
		AuthURL:     "https://idp.example.com/authorize",
		TokenURL:    tokenURL,
		RedirectURL: "https://app.example.com/auth/callback",
		Scopes:      []string{"openid"},
	}
	a, err := tenantauth.New(cfg.OAuth2(), codec)
	require.NoError(t, err)
	return a, codec
}

func TestChallenge(t *testing.T) {
	t.Parallel()

	t.Run("state carries tenant identifier", func(t *testing.T) {
		t.Parallel()

		a, codec := newAuthenticator(t, "https://idp.example.com/token")
		ctx := tenant.WithTenant(context.Background(), &tenant.Info{ID: "initech-id", Identifier: "initech"})

		raw, err := a.Challenge(ctx, tenant.Properties{"return_to": "/reports"})
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "idp.example.com", u.Host)
		assert.Equal(t, "client", u.Query().Get("client_id"))

		props, err := codec.Open(u.Query().Get("state"))
		require.NoError(t, err)
		assert.Equal(t, "initech", props[tenant.AuthPropertyKey])
		assert.Equal(t, "/reports", props["return_to"])
	})

	t.Run("requires a tenant", func(t *testing.T) {
		t.Parallel()

		a, _ := newAuthenticator(t, "https://idp.example.com/token")
		_, err := a.Challenge(context.Background(), nil)
		assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)

		rec := httptest.NewRecorder()
		a.ChallengeHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("handler redirects", func(t *testing.T) {
		t.Parallel()

		a, _ := newAuthenticator(t, "https://idp.example.com/token")
		req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
		req = req.WithContext(tenant.WithTenant(req.Context(), &tenant.Info{ID: "1", Identifier: "initech"}))

		rec := httptest.NewRecorder()
		a.ChallengeHandler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "https://idp.example.com/authorize?")
	})
}

func TestCallbackResolvesChallengingTenant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := tenantstore.NewMemoryStore()
	_, err := store.TryAdd(ctx, &tenant.Info{ID: "initech-id", Identifier: "initech", Name: "Initech"})
	require.NoError(t, err)

	resolver, err := tenant.NewResolver(store, []tenant.Strategy{tenant.NewRemoteAuthStrategy()})
	require.NoError(t, err)

	a, codec := newAuthenticator(t, "https://idp.example.com/token")
	handler := a.CallbackMiddleware(tenant.Middleware(resolver, tenant.WithRequireTenant(true))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := tenant.MustFromContext(r.Context())
		_, _ = w.Write([]byte(info.ID))
	})))

	t.Run("valid state", func(t *testing.T) {
		t.Parallel()

		state, err := codec.Seal(tenant.Properties{tenant.AuthPropertyKey: "INITECH"})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "initech-id", rec.Body.String())
	})

	t.Run("forged state", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no state leaves request unresolved", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestExchange(t *testing.T) {
	t.Parallel()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	a, _ := newAuthenticator(t, tokenServer.URL)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, tokenServer.Client())

	token, err := a.Exchange(ctx, httptest.NewRequest(http.MethodGet, "/cb?code=good-code", nil))
	require.NoError(t, err)
	assert.Equal(t, "token-123", token.AccessToken)

	_, err = a.Exchange(ctx, httptest.NewRequest(http.MethodGet, "/cb?code=bad", nil))
	assert.Error(t, err)

	_, err = a.Exchange(ctx, httptest.NewRequest(http.MethodGet, "/cb", nil))
	assert.ErrorIs(t, err, tenantauth.ErrMissingCode)
}
