// Package tenantoptions builds per-tenant options values.
//
// A Pipeline describes how a named options value of type T is assembled from
// configure and post-configure steps. A Cache runs the pipeline once per
// (tenant, name), applies an optional TenantFunc with the tenant record and
// keeps the result until it is invalidated or the record changes.
//
//	type Branding struct {
//		Title string `env:"TITLE" envDefault:"Acme"`
//		Color string `env:"COLOR" envDefault:"#000000"`
//	}
//
//	pipeline := tenantoptions.NewPipeline[Branding]().
//		ConfigureAll(tenantoptions.FromEnv[Branding]("BRANDING_"))
//
//	brandings, err := tenantoptions.NewCache(pipeline,
//		tenantoptions.WithTenantFunc(func(b *Branding, info *tenant.Info) {
//			b.Title = info.Name
//		}),
//	)
//
//	b, err := brandings.GetOrCreate(ctx, info, tenantoptions.DefaultName)
package tenantoptions
