package tenantdb

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// DefaultTenantColumn is the column holding the tenant key.
const DefaultTenantColumn = "tenant_id"

// UniqueConstraint is a unique index that must hold per tenant rather than
// globally, such as a user name or a role name.
type UniqueConstraint struct {
	Name    string
	Table   string
	Columns []string
}

// Scoped returns the constraint with the tenant column leading its columns.
func (u UniqueConstraint) Scoped(column string) UniqueConstraint {
	out := u
	out.Columns = append([]string{column}, slices.DeleteFunc(slices.Clone(u.Columns), func(c string) bool {
		return c == column
	})...)
	return out
}

// SQL renders a CREATE UNIQUE INDEX statement for the constraint.
func (u UniqueConstraint) SQL() string {
	cols := make([]string, len(u.Columns))
	for i, c := range u.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		pgx.Identifier{u.Name}.Sanitize(),
		pgx.Identifier(strings.Split(u.Table, ".")).Sanitize(),
		strings.Join(cols, ", "),
	)
}

// PersistFunc writes a validated change set.
type PersistFunc func(ctx context.Context) error

// Context is the tenant-aware persistence context. It enforces tenant keys
// on every save and owns the unique constraints that must include the
// tenant column.
type Context struct {
	registry    *Registry
	policy      Policy
	column      string
	constraints []UniqueConstraint
	logger      *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithPolicy sets the not-set and mismatch modes.
func WithPolicy(p Policy) ContextOption {
	return func(c *Context) { c.policy = p }
}

// WithTenantColumn overrides DefaultTenantColumn.
func WithTenantColumn(column string) ContextOption {
	return func(c *Context) {
		if column != "" {
			c.column = column
		}
	}
}

// WithUniqueConstraints registers constraints to scope by tenant.
func WithUniqueConstraints(constraints ...UniqueConstraint) ContextOption {
	return func(c *Context) { c.constraints = append(c.constraints, constraints...) }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(log *slog.Logger) ContextOption {
	return func(c *Context) {
		if log != nil {
			c.logger = log
		}
	}
}

func NewContext(reg *Registry, opts ...ContextOption) *Context {
	if reg == nil {
		reg = NewRegistry()
	}
	c := &Context{
		registry: reg,
		column:   DefaultTenantColumn,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the scoped type registry.
func (c *Context) Registry() *Registry { return c.registry }

// UniqueConstraints returns the registered constraints scoped by the tenant column.
func (c *Context) UniqueConstraints() []UniqueConstraint {
	out := make([]UniqueConstraint, len(c.constraints))
	for i, u := range c.constraints {
		out[i] = u.Scoped(c.column)
	}
	return out
}

// MigrationSQL returns the statements creating the scoped unique indexes.
func (c *Context) MigrationSQL() []string {
	stmts := make([]string, 0, len(c.constraints))
	for _, u := range c.UniqueConstraints() {
		stmts = append(stmts, u.SQL())
	}
	return stmts
}

// SaveChanges enforces tenant keys against the tenant resolved for ctx and
// calls persist only if every scoped change passes.
func (c *Context) SaveChanges(ctx context.Context, changes ChangeSet, persist PersistFunc) error {
	info, _ := tenant.FromContext(ctx)
	return c.SaveChangesFor(ctx, info, changes, persist)
}

// SaveChangesFor is SaveChanges with an explicit tenant. info may be nil.
func (c *Context) SaveChangesFor(ctx context.Context, info *tenant.Info, changes ChangeSet, persist PersistFunc) error {
	if err := EnforceTenantID(ctx, info, c.registry, changes, c.policy); err != nil {
		attrs := []any{logger.Error(err)}
		if info != nil {
			attrs = append(attrs, logger.TenantID(info.ID))
		}
		c.logger.WarnContext(ctx, "save rejected by tenant enforcement", attrs...)
		return err
	}
	if persist == nil {
		return nil
	}
	return persist(ctx)
}
