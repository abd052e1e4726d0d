package tenant

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultRouteParam is the route parameter read by the route strategy.
	DefaultRouteParam = "__tenant__"
	// DefaultHeaderName is the header read by the header strategy.
	DefaultHeaderName = "X-Tenant-ID"
	// AuthPropertyKey is the authentication property carrying the identifier
	// of the tenant that started a remote authentication flow.
	AuthPropertyKey = "tenantIdentifier"

	// MaxIdentifierLength bounds identifiers taken from request data.
	MaxIdentifierLength = 253
)

// Strategy names reported in ResolutionContext.Strategy.
const (
	StrategyStatic     = "static"
	StrategyBasePath   = "base_path"
	StrategyHost       = "host"
	StrategyRoute      = "route"
	StrategyHeader     = "header"
	StrategyRemoteAuth = "remote_auth"
)

func checkLength(kind, id string) (string, error) {
	if len(id) > MaxIdentifierLength {
		return "", fmt.Errorf("%w: %s value exceeds %d bytes", ErrInvalidIdentifier, kind, MaxIdentifierLength)
	}
	return id, nil
}

// StaticStrategy always yields the same identifier. Useful for single-tenant
// deployments and tests.
type StaticStrategy struct {
	identifier string
}

// NewStaticStrategy returns an error if identifier is blank.
func NewStaticStrategy(identifier string) (*StaticStrategy, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: static identifier is empty", ErrInvalidStrategy)
	}
	return &StaticStrategy{identifier: identifier}, nil
}

func (s *StaticStrategy) Name() string { return StrategyStatic }

func (s *StaticStrategy) Identify(context.Context, Request) (string, error) {
	return s.identifier, nil
}

// BasePathStrategy uses the first path segment as the identifier. The path is
// left untouched; stripping the segment before routing is the router's job.
type BasePathStrategy struct{}

func NewBasePathStrategy() *BasePathStrategy { return &BasePathStrategy{} }

func (s *BasePathStrategy) Name() string { return StrategyBasePath }

func (s *BasePathStrategy) Identify(_ context.Context, req Request) (string, error) {
	segments := req.Segments()
	if len(segments) == 0 {
		return "", nil
	}
	return checkLength("path segment", segments[0])
}

// RouteStrategy reads a named route parameter.
type RouteStrategy struct {
	param string
}

// NewRouteStrategy defaults to DefaultRouteParam when param is empty.
func NewRouteStrategy(param string) *RouteStrategy {
	if strings.TrimSpace(param) == "" {
		param = DefaultRouteParam
	}
	return &RouteStrategy{param: param}
}

func (s *RouteStrategy) Name() string { return StrategyRoute }

func (s *RouteStrategy) Identify(_ context.Context, req Request) (string, error) {
	return checkLength("route parameter", strings.TrimSpace(req.RouteParam(s.param)))
}

// HeaderStrategy reads the identifier from a request header.
type HeaderStrategy struct {
	header string
}

// NewHeaderStrategy defaults to DefaultHeaderName when header is empty.
func NewHeaderStrategy(header string) *HeaderStrategy {
	if strings.TrimSpace(header) == "" {
		header = DefaultHeaderName
	}
	return &HeaderStrategy{header: header}
}

func (s *HeaderStrategy) Name() string { return StrategyHeader }

func (s *HeaderStrategy) Identify(_ context.Context, req Request) (string, error) {
	return checkLength("header", req.Header(s.header))
}

// RemoteAuthStrategy recovers the identifier stashed in the authentication
// property bag when the flow was challenged. The bag travels with the
// external redirect, so the callback request resolves to the same tenant.
type RemoteAuthStrategy struct {
	key string
}

func NewRemoteAuthStrategy() *RemoteAuthStrategy {
	return &RemoteAuthStrategy{key: AuthPropertyKey}
}

func (s *RemoteAuthStrategy) Name() string { return StrategyRemoteAuth }

func (s *RemoteAuthStrategy) Identify(_ context.Context, req Request) (string, error) {
	v, ok := req.Property(s.key)
	if !ok {
		return "", nil
	}
	return checkLength("auth property", strings.TrimSpace(v))
}
