package tenantstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// Source supplies the raw configuration document. YAML and JSON are accepted.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// WatchableSource can report changes to the underlying document.
// Watch blocks until ctx is done, calling onChange after each change.
type WatchableSource interface {
	Source
	Watch(ctx context.Context, onChange func()) error
}

// BytesSource serves a fixed document.
type BytesSource []byte

func (b BytesSource) Load(context.Context) ([]byte, error) { return b, nil }

// RecordConfig is a partial tenant record as written in configuration.
// Empty fields inherit from the section defaults.
type RecordConfig struct {
	ID               string            `yaml:"id" json:"id"`
	Identifier       string            `yaml:"identifier" json:"identifier"`
	Name             string            `yaml:"name" json:"name"`
	ConnectionString string            `yaml:"connection_string" json:"connection_string"`
	Items            map[string]string `yaml:"items" json:"items"`
}

// Section is the configuration shape read by ConfigStore.
type Section struct {
	Defaults RecordConfig   `yaml:"defaults" json:"defaults"`
	Tenants  []RecordConfig `yaml:"tenants" json:"tenants"`
}

// Records merges every tenant over the defaults, in document order.
func (s Section) Records() []*tenant.Info {
	out := make([]*tenant.Info, 0, len(s.Tenants))
	for _, t := range s.Tenants {
		info := &tenant.Info{
			ID:               firstNonEmpty(t.ID, s.Defaults.ID),
			Identifier:       firstNonEmpty(t.Identifier, s.Defaults.Identifier),
			Name:             firstNonEmpty(t.Name, s.Defaults.Name),
			ConnectionString: firstNonEmpty(t.ConnectionString, s.Defaults.ConnectionString),
		}
		if len(s.Defaults.Items) > 0 || len(t.Items) > 0 {
			info.Items = make(map[string]string, len(s.Defaults.Items)+len(t.Items))
			maps.Copy(info.Items, s.Defaults.Items)
			maps.Copy(info.Items, t.Items)
		}
		out = append(out, info)
	}
	return out
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// ConfigStore serves tenants declared in a configuration document.
//
// The store is read-only: TryAdd, TryRemove and TryUpdate return
// tenant.ErrNotSupported. Reload rebuilds the whole mapping and swaps it in
// one step, so readers observe either the old or the new set, never a mix.
type ConfigStore struct {
	source  Source
	opts    *options
	current atomic.Pointer[index]
	logger  *slog.Logger
}

var _ tenant.Store = (*ConfigStore)(nil)

// NewConfigStore loads src once. A document that cannot be parsed, lacks the
// section or declares duplicate tenants fails construction.
func NewConfigStore(ctx context.Context, src Source, opts ...Option) (*ConfigStore, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrSourceUnavailable)
	}
	o := applyOptions(opts)
	s := &ConfigStore{source: src, opts: o, logger: o.logger}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the source. On failure the previous snapshot stays active.
func (s *ConfigStore) Reload(ctx context.Context) error {
	err := s.reload(ctx)
	for _, fn := range s.opts.onReload {
		fn(ctx, err)
	}
	return err
}

func (s *ConfigStore) reload(ctx context.Context) error {
	data, err := s.source.Load(ctx)
	if err != nil {
		return errors.Join(ErrSourceUnavailable, err)
	}
	section, err := ParseSection(data, s.opts.section)
	if err != nil {
		return err
	}
	idx, err := populate(section.Records(), s.opts.ignoreCase, s.opts.defaultConnectionString)
	if err != nil {
		return errors.Join(ErrInvalidSection, err)
	}

	s.current.Store(idx)
	s.logger.InfoContext(ctx, "tenant configuration loaded",
		slog.Int("tenants", idx.len()),
		slog.String("section", s.opts.section),
	)
	return nil
}

// Watch reloads the store whenever a watchable source changes. It blocks
// until ctx is done. Failed reloads are logged and the old snapshot kept.
func (s *ConfigStore) Watch(ctx context.Context) error {
	ws, ok := s.source.(WatchableSource)
	if !ok {
		return ErrWatchNotSupported
	}
	return ws.Watch(ctx, func() {
		if err := s.Reload(ctx); err != nil {
			s.logger.ErrorContext(ctx, "tenant configuration reload failed", logger.Error(err))
		}
	})
}

func (s *ConfigStore) snapshot() *index { return s.current.Load() }

func (s *ConfigStore) GetByID(_ context.Context, id string) (*tenant.Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.snapshot().getByID(id)
}

func (s *ConfigStore) GetByIdentifier(_ context.Context, identifier string) (*tenant.Info, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	return s.snapshot().getByIdentifier(identifier)
}

// List returns all configured tenants ordered by identifier.
func (s *ConfigStore) List(context.Context) ([]*tenant.Info, error) {
	return s.snapshot().list(), nil
}

func (s *ConfigStore) TryAdd(context.Context, *tenant.Info) (bool, error) {
	return false, tenant.ErrNotSupported
}

func (s *ConfigStore) TryRemove(context.Context, string) (bool, error) {
	return false, tenant.ErrNotSupported
}

func (s *ConfigStore) TryUpdate(context.Context, *tenant.Info) (bool, error) {
	return false, tenant.ErrNotSupported
}

// ParseSection decodes the section at path from a YAML or JSON document.
// Keys along the path and the field names of the section are matched
// case-insensitively, so "Tenants" and "ConnectionString" are accepted.
// Item keys keep their case. A section without a tenants key is invalid.
func ParseSection(data []byte, path string) (Section, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Section{}, fmt.Errorf("%w: %w", ErrInvalidSection, err)
	}
	if len(doc.Content) == 0 {
		return Section{}, fmt.Errorf("%w: empty document", ErrInvalidSection)
	}

	node := doc.Content[0]
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			node = childNode(node, key)
			if node == nil {
				return Section{}, fmt.Errorf("%w: section %q not found", ErrInvalidSection, path)
			}
		}
	}
	if node.Kind != yaml.MappingNode {
		return Section{}, fmt.Errorf("%w: section %q is not a mapping", ErrInvalidSection, path)
	}

	foldFieldKeys(node, sectionFields)
	if childNode(node, "tenants") == nil {
		return Section{}, fmt.Errorf("%w: section %q has no tenants", ErrInvalidSection, path)
	}

	var section Section
	if err := node.Decode(&section); err != nil {
		return Section{}, fmt.Errorf("%w: %w", ErrInvalidSection, err)
	}
	return section, nil
}

func childNode(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if strings.EqualFold(node.Content[i].Value, key) {
			return node.Content[i+1]
		}
	}
	return nil
}

var (
	sectionFields = map[string]string{"defaults": "defaults", "tenants": "tenants"}
	recordFields  = map[string]string{
		"id":               "id",
		"identifier":       "identifier",
		"name":             "name",
		"connectionstring": "connection_string",
		"items":            "items",
	}
)

// foldFieldKeys rewrites mapping keys to their yaml tag spelling, descending
// into defaults and tenants records but not into items.
func foldFieldKeys(node *yaml.Node, fields map[string]string) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		name, ok := fields[fieldKey(key.Value)]
		if !ok {
			continue
		}
		key.Value = name
		switch name {
		case "defaults":
			foldFieldKeys(value, recordFields)
		case "tenants":
			if value.Kind == yaml.SequenceNode {
				for _, rec := range value.Content {
					foldFieldKeys(rec, recordFields)
				}
			}
		}
	}
}

func fieldKey(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
}
