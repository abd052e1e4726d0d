// Package tenantdb keeps tenant-scoped rows inside their tenant at save time.
//
// Entity types are marked as scoped in a Registry and implement Scoped,
// usually by embedding TenantKey. Before a change set is written,
// EnforceTenantID stamps new entities with the active tenant and rejects
// changes that touch another tenant's rows or arrive with no tenant at all.
// Softer behavior is opt-in through Policy.
//
//	db := tenantdb.NewContext(tenantdb.NewRegistry("note"),
//		tenantdb.WithUniqueConstraints(tenantdb.UniqueConstraint{
//			Name: "notes_slug_key", Table: "notes", Columns: []string{"slug"},
//		}),
//	)
//
//	tx := tenantdb.NewTracker()
//	tx.Add("note", &Note{Slug: "welcome"})
//	err := db.SaveChanges(ctx, tx, func(ctx context.Context) error {
//		return writeNotes(ctx, tx.Entries())
//	})
package tenantdb
