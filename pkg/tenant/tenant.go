package tenant

import (
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"
)

// Info is a tenant record. Stores hand out copies, so a value obtained from a
// store or a resolution is safe to read from any goroutine.
type Info struct {
	// ID is the stable internal key. It is never reused once assigned.
	ID string `json:"id"`
	// Identifier is the routing key (slug, subdomain, path segment).
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	// ConnectionString addresses tenant-scoped resources. Opaque to this package.
	ConnectionString string            `json:"connection_string,omitempty"`
	Items            map[string]string `json:"items,omitempty"`
}

// NewInfo creates a tenant record with a freshly generated ID.
func NewInfo(identifier, name string) *Info {
	return &Info{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Name:       name,
	}
}

// Validate reports whether the record can be stored.
func (i *Info) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidTenant)
	}
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTenant)
	}
	if strings.TrimSpace(i.Identifier) == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidTenant)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	c := *i
	if i.Items != nil {
		c.Items = make(map[string]string, len(i.Items))
		maps.Copy(c.Items, i.Items)
	}
	return &c
}

// Item returns an extension value by key.
func (i *Info) Item(key string) (string, bool) {
	if i == nil || i.Items == nil {
		return "", false
	}
	v, ok := i.Items[key]
	return v, ok
}
