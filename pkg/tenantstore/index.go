package tenantstore

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// index is the lookup structure shared by the in-memory and configuration
// stores. It is not synchronized; callers guard it or treat it as immutable.
type index struct {
	ignoreCase bool
	byID       map[string]*tenant.Info
	byKey      map[string]*tenant.Info
}

func newIndex(ignoreCase bool, size int) *index {
	return &index{
		ignoreCase: ignoreCase,
		byID:       make(map[string]*tenant.Info, size),
		byKey:      make(map[string]*tenant.Info, size),
	}
}

func (x *index) key(identifier string) string {
	return normalizeKey(identifier, x.ignoreCase)
}

func (x *index) len() int { return len(x.byID) }

// add stores a copy of info. It returns false if the ID or the identifier key
// is already taken.
func (x *index) add(info *tenant.Info) bool {
	k := x.key(info.Identifier)
	if _, ok := x.byID[info.ID]; ok {
		return false
	}
	if _, ok := x.byKey[k]; ok {
		return false
	}
	c := info.Clone()
	x.byID[c.ID] = c
	x.byKey[k] = c
	return true
}

func (x *index) getByID(id string) (*tenant.Info, error) {
	info, ok := x.byID[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return info.Clone(), nil
}

func (x *index) getByIdentifier(identifier string) (*tenant.Info, error) {
	info, ok := x.byKey[x.key(identifier)]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return info.Clone(), nil
}

func (x *index) remove(id string) bool {
	info, ok := x.byID[id]
	if !ok {
		return false
	}
	delete(x.byID, id)
	delete(x.byKey, x.key(info.Identifier))
	return true
}

// update replaces the record with the same ID. It returns false if the ID is
// unknown or the new identifier belongs to a different record.
func (x *index) update(info *tenant.Info) bool {
	old, ok := x.byID[info.ID]
	if !ok {
		return false
	}
	k := x.key(info.Identifier)
	if other, ok := x.byKey[k]; ok && other.ID != info.ID {
		return false
	}
	delete(x.byKey, x.key(old.Identifier))
	c := info.Clone()
	x.byID[c.ID] = c
	x.byKey[k] = c
	return true
}

// list returns copies of all records ordered by identifier.
func (x *index) list() []*tenant.Info {
	out := make([]*tenant.Info, 0, len(x.byID))
	for _, info := range x.byID {
		out = append(out, info.Clone())
	}
	slices.SortFunc(out, func(a, b *tenant.Info) int {
		return strings.Compare(a.Identifier, b.Identifier)
	})
	return out
}

// populate builds an index from records, failing on the first invalid or
// duplicate record. Records with an empty ConnectionString get defaultConn.
func populate(records []*tenant.Info, ignoreCase bool, defaultConn string) (*index, error) {
	x := newIndex(ignoreCase, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		c := r.Clone()
		c.ID = strings.TrimSpace(c.ID)
		c.Identifier = strings.TrimSpace(c.Identifier)
		if c.ConnectionString == "" {
			c.ConnectionString = defaultConn
		}
		if !x.add(c) {
			return nil, fmt.Errorf("%w: id %q identifier %q", ErrDuplicateIdentifier, c.ID, c.Identifier)
		}
	}
	return x, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", tenant.ErrInvalidIdentifier)
	}
	return nil
}

func validateIdentifier(identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: empty identifier", tenant.ErrInvalidIdentifier)
	}
	return nil
}
