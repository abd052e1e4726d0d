package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantoptions"
)

// Tenant items overriding branding defaults.
const (
	itemTitle        = "branding.title"
	itemPrimaryColor = "branding.primary_color"
	itemLogoURL      = "branding.logo_url"
	itemSupportEmail = "branding.support_email"
)

// branding is the per-tenant look served by /branding.
type branding struct {
	Title        string `env:"TITLE" json:"title"`
	PrimaryColor string `env:"PRIMARY_COLOR" envDefault:"#1f6feb" json:"primary_color"`
	LogoURL      string `env:"LOGO_URL" json:"logo_url,omitempty"`
	SupportEmail string `env:"SUPPORT_EMAIL" json:"support_email,omitempty"`
}

func newBrandingCache(observe func(name string, hit bool), log *slog.Logger) (*tenantoptions.Cache[branding], error) {
	pipeline := tenantoptions.NewPipeline[branding]().
		ConfigureAll(tenantoptions.FromEnv[branding]("BRANDING_")).
		PostConfigureAll(func(_ context.Context, b *branding) error {
			b.PrimaryColor = strings.ToLower(strings.TrimSpace(b.PrimaryColor))
			return nil
		})

	return tenantoptions.NewCache(pipeline,
		tenantoptions.WithTenantFunc[branding](applyTenantBranding),
		tenantoptions.WithObserver[branding](observe),
		tenantoptions.WithCacheLogger[branding](log),
	)
}

func applyTenantBranding(b *branding, info *tenant.Info) {
	b.Title = info.Name
	if v, ok := info.Item(itemTitle); ok {
		b.Title = v
	}
	if b.Title == "" {
		b.Title = info.Identifier
	}
	if v, ok := info.Item(itemPrimaryColor); ok {
		b.PrimaryColor = strings.ToLower(v)
	}
	if v, ok := info.Item(itemLogoURL); ok {
		b.LogoURL = v
	}
	if v, ok := info.Item(itemSupportEmail); ok {
		b.SupportEmail = v
	}
}
