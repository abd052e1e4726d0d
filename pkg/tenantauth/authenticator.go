package tenantauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// Config describes the external OAuth2 provider.
type Config struct {
	ClientID     string        `env:"AUTH_CLIENT_ID"`
	ClientSecret string        `env:"AUTH_CLIENT_SECRET"`
	AuthURL      string        `env:"AUTH_AUTH_URL"`
	TokenURL     string        `env:"AUTH_TOKEN_URL"`
	RedirectURL  string        `env:"AUTH_REDIRECT_URL"`
	Scopes       []string      `env:"AUTH_SCOPES" envSeparator:"," envDefault:"openid,email"`
	StateSecret  string        `env:"AUTH_STATE_SECRET"`
	StateTTL     time.Duration `env:"AUTH_STATE_TTL" envDefault:"10m"`
}

// Enabled reports whether a provider is configured.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.AuthURL != "" && c.TokenURL != ""
}

// OAuth2 returns the oauth2 client configuration.
func (c Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
		},
	}
}

// Authenticator runs the challenge and callback halves of a remote
// authentication flow for the tenant in effect. The tenant identifier is
// stored in the sealed state under tenant.AuthPropertyKey, so the callback
// resolves to the same tenant with tenant.RemoteAuthStrategy.
type Authenticator struct {
	oauth        *oauth2.Config
	codec        *StateCodec
	logger       *slog.Logger
	errorHandler tenant.ErrorHandler
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(a *Authenticator) {
		if log != nil {
			a.logger = log
		}
	}
}

// WithErrorHandler replaces the handler used for challenge and callback errors.
func WithErrorHandler(h tenant.ErrorHandler) Option {
	return func(a *Authenticator) {
		if h != nil {
			a.errorHandler = h
		}
	}
}

func New(cfg *oauth2.Config, codec *StateCodec, opts ...Option) (*Authenticator, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if codec == nil {
		return nil, ErrInvalidSecret
	}
	a := &Authenticator{
		oauth:        cfg,
		codec:        codec,
		logger:       slog.New(slog.DiscardHandler),
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Challenge returns the provider authorization URL for the tenant in ctx.
// extra is copied into the sealed property bag.
func (a *Authenticator) Challenge(ctx context.Context, extra tenant.Properties, opts ...oauth2.AuthCodeOption) (string, error) {
	info, ok := tenant.FromContext(ctx)
	if !ok {
		return "", tenant.ErrNoTenantInContext
	}

	props := make(tenant.Properties, len(extra)+1)
	maps.Copy(props, extra)
	props[tenant.AuthPropertyKey] = info.Identifier

	state, err := a.codec.Seal(props)
	if err != nil {
		return "", fmt.Errorf("seal state: %w", err)
	}

	a.logger.DebugContext(ctx, "remote authentication challenged",
		logger.TenantID(info.ID),
		logger.Identifier(info.Identifier),
	)
	return a.oauth.AuthCodeURL(state, opts...), nil
}

// ChallengeHandler redirects the client to the provider.
func (a *Authenticator) ChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := a.Challenge(r.Context(), nil)
		if err != nil {
			a.errorHandler(w, r, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// CallbackMiddleware opens the state query parameter and attaches its
// property bag to the request context. It must run before tenant resolution.
// Requests without a state parameter pass through unchanged.
func (a *Authenticator) CallbackMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		if state == "" {
			next.ServeHTTP(w, r)
			return
		}

		props, err := a.codec.Open(state)
		if err != nil {
			a.logger.WarnContext(r.Context(), "remote authentication state rejected", logger.Error(err))
			a.errorHandler(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithProperties(r.Context(), props)))
	})
}

// Exchange trades the callback's authorization code for a token.
func (a *Authenticator) Exchange(ctx context.Context, r *http.Request) (*oauth2.Token, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}
	token, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrStateExpired), errors.Is(err, ErrMissingCode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tenant.ErrNoTenantInContext):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
