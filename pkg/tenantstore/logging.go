package tenantstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// LoggingStore validates arguments and logs the outcome of every call on the
// wrapped store. Not-found lookups log at debug; failures at error.
type LoggingStore struct {
	next tenant.Store
	name string
	log  *slog.Logger
}

var _ tenant.Store = (*LoggingStore)(nil)

// NewLoggingStore wraps next; name labels the records ("memory", "postgres").
func NewLoggingStore(next tenant.Store, name string, log *slog.Logger) *LoggingStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &LoggingStore{
		next: next,
		name: name,
		log:  log.With(logger.Component("tenant_store"), logger.Store(name)),
	}
}

// Unwrap returns the wrapped store.
func (s *LoggingStore) Unwrap() tenant.Store { return s.next }

func (s *LoggingStore) TryAdd(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	ok, err := s.next.TryAdd(ctx, info)
	s.logMutation(ctx, "add", info.ID, info.Identifier, ok, err)
	return ok, err
}

func (s *LoggingStore) GetByID(ctx context.Context, id string) (*tenant.Info, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	info, err := s.next.GetByID(ctx, id)
	s.logLookup(ctx, logger.TenantID(id), info, err)
	return info, err
}

func (s *LoggingStore) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Info, error) {
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}
	info, err := s.next.GetByIdentifier(ctx, identifier)
	s.logLookup(ctx, logger.Identifier(identifier), info, err)
	return info, err
}

func (s *LoggingStore) TryRemove(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	ok, err := s.next.TryRemove(ctx, id)
	s.logMutation(ctx, "remove", id, "", ok, err)
	return ok, err
}

func (s *LoggingStore) TryUpdate(ctx context.Context, info *tenant.Info) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	ok, err := s.next.TryUpdate(ctx, info)
	s.logMutation(ctx, "update", info.ID, info.Identifier, ok, err)
	return ok, err
}

func (s *LoggingStore) logLookup(ctx context.Context, key slog.Attr, info *tenant.Info, err error) {
	switch {
	case err == nil:
		s.log.DebugContext(ctx, "tenant found", key, logger.TenantID(info.ID))
	case errors.Is(err, tenant.ErrTenantNotFound):
		s.log.DebugContext(ctx, "tenant not found", key)
	default:
		s.log.ErrorContext(ctx, "tenant lookup failed", key, logger.Error(err))
	}
}

func (s *LoggingStore) logMutation(ctx context.Context, op, id, identifier string, ok bool, err error) {
	attrs := []any{logger.Event(op), logger.TenantID(id)}
	if identifier != "" {
		attrs = append(attrs, logger.Identifier(identifier))
	}
	switch {
	case errors.Is(err, tenant.ErrNotSupported):
		s.log.WarnContext(ctx, fmt.Sprintf("tenant %s not supported by store", op), attrs...)
	case err != nil:
		s.log.ErrorContext(ctx, fmt.Sprintf("tenant %s failed", op), append(attrs, logger.Error(err))...)
	case ok:
		s.log.DebugContext(ctx, fmt.Sprintf("tenant %s succeeded", op), attrs...)
	default:
		s.log.DebugContext(ctx, fmt.Sprintf("tenant %s rejected", op), attrs...)
	}
}
