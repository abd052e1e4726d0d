package tenant_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

// MockStore is a mock implementation of tenant.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) TryAdd(ctx context.Context, info *tenant.Info) (bool, error) {
	args := m.Called(ctx, info)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*tenant.Info, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Info), args.Error(1)
}

func (m *MockStore) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Info, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenant.Info), args.Error(1)
}

func (m *MockStore) TryRemove(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) TryUpdate(ctx context.Context, info *tenant.Info) (bool, error) {
	args := m.Called(ctx, info)
	return args.Bool(0), args.Error(1)
}

// fakeRequest is a static tenant.Request.
type fakeRequest struct {
	path    string
	host    string
	headers map[string]string
	params  map[string]string
	props   tenant.Properties
}

func (r fakeRequest) Path() string                       { return r.path }
func (r fakeRequest) Segments() []string                 { return tenant.SplitPath(r.path) }
func (r fakeRequest) Host() string                       { return r.host }
func (r fakeRequest) Header(name string) string          { return r.headers[name] }
func (r fakeRequest) RouteParam(name string) string      { return r.params[name] }
func (r fakeRequest) Property(key string) (string, bool) { return r.props.Get(key) }

func testTenant(identifier string) *tenant.Info {
	return &tenant.Info{
		ID:         identifier + "-id",
		Identifier: identifier,
		Name:       identifier + " Inc",
	}
}
