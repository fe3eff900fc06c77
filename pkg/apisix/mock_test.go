package apisix_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// MockResource implements apisix.ResourceClient for testing
type MockResource struct {
	mock.Mock

	endpoint string
}

func newMockResource(endpoint string) *MockResource {
	return &MockResource{endpoint: endpoint}
}

func (m *MockResource) Endpoint() string {
	return m.endpoint
}

func (m *MockResource) List(ctx context.Context, params *apisix.QueryParams) ([]apisix.Entity, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]apisix.Entity), args.Error(1)
}

func (m *MockResource) ListPaginated(ctx context.Context, page, pageSize int, filters map[string]string) (*apisix.PaginatedList, error) {
	args := m.Called(ctx, page, pageSize, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*apisix.PaginatedList), args.Error(1)
}

func (m *MockResource) Get(ctx context.Context, id string) (apisix.Entity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(apisix.Entity), args.Error(1)
}

func (m *MockResource) Create(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	args := m.Called(ctx, id, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(apisix.Entity), args.Error(1)
}

func (m *MockResource) Update(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	args := m.Called(ctx, id, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(apisix.Entity), args.Error(1)
}

func (m *MockResource) Patch(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	args := m.Called(ctx, id, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(apisix.Entity), args.Error(1)
}

func (m *MockResource) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockResource) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

// mockProvider hands out the same MockResource for every endpoint.
type mockProvider struct {
	resource *MockResource
}

func (p mockProvider) Resource(string) apisix.ResourceClient {
	return p.resource
}

func notFound(id string) error {
	return apisix.NewHTTPError("GET", "/apisix/admin/routes/"+id, 404, []byte(`{"message":"Key not found"}`))
}
