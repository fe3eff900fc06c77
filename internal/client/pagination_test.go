package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apisix-client/internal/gatewaytest"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

func seedRoutes(gateway *gatewaytest.Server, count int) {
	for i := 1; i <= count; i++ {
		gateway.Seed("routes", fmt.Sprintf("r%02d", i), map[string]interface{}{"uri": fmt.Sprintf("/r%02d", i)})
	}
}

func TestResourceClient_ListPaginated(t *testing.T) {
	t.Parallel()

	t.Run("modern server pages", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t)
		client := newTestClient(t, gateway)
		seedRoutes(gateway, 25)

		page, err := client.Routes().ListPaginated(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		assert.Len(t, page.Items, 10)
		assert.Equal(t, 25, page.Total)
		assert.True(t, page.HasMore)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 10, page.PageSize)
		assert.Equal(t, "r11", page.Items[0].ID())

		last, err := client.Routes().ListPaginated(context.Background(), 3, 10, nil)
		require.NoError(t, err)
		assert.Len(t, last.Items, 5)
		assert.False(t, last.HasMore)
	})

	t.Run("legacy server returns the whole collection", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t, gatewaytest.WithMode(gatewaytest.ModeLegacy))
		client := newTestClient(t, gateway)
		seedRoutes(gateway, 25)

		page, err := client.Routes().ListPaginated(context.Background(), 2, 10, nil)
		require.NoError(t, err)
		assert.Len(t, page.Items, 25)
		assert.Equal(t, 25, page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 25, page.PageSize)
		assert.False(t, page.HasMore)
	})

	t.Run("out of range arguments are clamped", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t)
		client := newTestClient(t, gateway)
		seedRoutes(gateway, 3)

		page, err := client.Routes().ListPaginated(context.Background(), 0, 1, nil)
		require.NoError(t, err)
		assert.Len(t, page.Items, 3)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 10, page.PageSize)
		assert.False(t, page.HasMore)
	})

	t.Run("filters are forwarded", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t)
		client := newTestClient(t, gateway)
		gateway.Seed("routes", "a", map[string]interface{}{"name": "keep"})
		gateway.Seed("routes", "b", map[string]interface{}{"name": "drop"})

		page, err := client.Routes().ListPaginated(context.Background(), 1, 10, map[string]string{"name": "keep"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "a", page.Items[0].ID())
		assert.Equal(t, 1, page.Total)
	})
}

func TestClampPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		page, pageSize   int
		wantPage, wantSz int
	}{
		{name: "in range", page: 2, pageSize: 50, wantPage: 2, wantSz: 50},
		{name: "zero page", page: 0, pageSize: 10, wantPage: 1, wantSz: 10},
		{name: "negative page", page: -3, pageSize: 10, wantPage: 1, wantSz: 10},
		{name: "small page size", page: 1, pageSize: 1, wantPage: 1, wantSz: 10},
		{name: "large page size", page: 1, pageSize: 1000, wantPage: 1, wantSz: 500},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			page, pageSize := clampPage(testCase.page, testCase.pageSize)
			assert.Equal(t, testCase.wantPage, page)
			assert.Equal(t, testCase.wantSz, pageSize)
		})
	}
}

func TestPaginatedResult(t *testing.T) {
	t.Parallel()

	items := func(count int) []apisix.Entity {
		out := make([]apisix.Entity, count)
		for i := range out {
			out[i] = apisix.Entity{"id": fmt.Sprint(i)}
		}

		return out
	}

	total := 30
	hasMore := false

	t.Run("total reported", func(t *testing.T) {
		t.Parallel()

		result := paginatedResult(items(10), apisix.ListMeta{Total: &total}, 2, 10)
		assert.Equal(t, 30, result.Total)
		assert.True(t, result.HasMore)

		result = paginatedResult(items(10), apisix.ListMeta{Total: &total}, 3, 10)
		assert.False(t, result.HasMore)
	})

	t.Run("explicit has_more wins", func(t *testing.T) {
		t.Parallel()

		result := paginatedResult(items(10), apisix.ListMeta{Total: &total, HasMore: &hasMore}, 1, 10)
		assert.False(t, result.HasMore)
	})

	t.Run("no metadata", func(t *testing.T) {
		t.Parallel()

		full := paginatedResult(items(10), apisix.ListMeta{}, 2, 10)
		assert.True(t, full.HasMore)
		assert.Equal(t, 20, full.Total)

		partial := paginatedResult(items(4), apisix.ListMeta{}, 2, 10)
		assert.False(t, partial.HasMore)
		assert.Equal(t, 14, partial.Total)
	})
}
