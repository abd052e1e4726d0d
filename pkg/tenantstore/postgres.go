package tenantstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/dmitrymomot/multitenant/pkg/pg"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the goose migrations creating the tenants table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	sqlInsert = `INSERT INTO tenants (id, identifier, identifier_key, name, connection_string, items)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING`

	sqlSelectByID = `SELECT id, identifier, name, connection_string, items FROM tenants WHERE id = $1`

	sqlSelectByKey = `SELECT id, identifier, name, connection_string, items FROM tenants WHERE identifier_key = $1`

	sqlDelete = `DELETE FROM tenants WHERE id = $1`

	sqlUpdate = `UPDATE tenants
SET identifier = $2, identifier_key = $3, name = $4, connection_string = $5, items = $6, updated_at = now()
WHERE id = $1`
)

// SQLStore keeps tenants in Postgres. The identifier lookup key is computed
// in Go under the store's case policy and enforced unique by the database,
// so every process sharing a table must use the same policy.
type SQLStore struct {
	db         *sql.DB
	ignoreCase bool
}

var _ tenant.Store = (*SQLStore)(nil)

// NewSQLStore wraps db, typically opened with stdlib.OpenDBFromPool.
func NewSQLStore(db *sql.DB, opts ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, ErrNilClient
	}
	o := applyOptions(opts)
	return &SQLStore{db: db, ignoreCase: o.ignoreCase}, nil
}

func (s *SQLStore) TryAdd(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	items, err := encodeItems(info.Items)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, sqlInsert,
		info.ID, info.Identifier, normalizeKey(info.Identifier, s.ignoreCase),
		info.Name, info.ConnectionString, items,
	)
	if err != nil {
		return false, fmt.Errorf("insert tenant: %w", err)
	}
	return affected(res)
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (*tenant.Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.get(ctx, sqlSelectByID, id)
}

func (s *SQLStore) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Info, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	return s.get(ctx, sqlSelectByKey, normalizeKey(identifier, s.ignoreCase))
}

func (s *SQLStore) TryRemove(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, sqlDelete, id)
	if err != nil {
		return false, fmt.Errorf("delete tenant: %w", err)
	}
	return affected(res)
}

func (s *SQLStore) TryUpdate(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	items, err := encodeItems(info.Items)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, sqlUpdate,
		info.ID, info.Identifier, normalizeKey(info.Identifier, s.ignoreCase),
		info.Name, info.ConnectionString, items,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("update tenant: %w", err)
	}
	return affected(res)
}

func (s *SQLStore) get(ctx context.Context, query, arg string) (*tenant.Info, error) {
	var (
		info  tenant.Info
		items []byte
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&info.ID, &info.Identifier, &info.Name, &info.ConnectionString, &items,
	)
	if errors.Is(err, sql.ErrNoRows) || pg.IsNotFoundError(err) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select tenant: %w", err)
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &info.Items); err != nil {
			return nil, fmt.Errorf("decode tenant items: %w", err)
		}
		if len(info.Items) == 0 {
			info.Items = nil
		}
	}
	return &info, nil
}

func encodeItems(items map[string]string) ([]byte, error) {
	if items == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode tenant items: %w", err)
	}
	return b, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
