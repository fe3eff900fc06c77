package client

import (
	"context"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// ListPaginated implements apisix.ResourceClient.ListPaginated.
//
// On servers that paginate, page and pageSize are forwarded (page is raised
// to 1 and pageSize clamped to the server's accepted range) and the reported
// total is returned. On servers that do not, the complete collection is
// fetched: Items holds all of it, Total is its length and HasMore is false.
func (c *ResourceClient) ListPaginated(ctx context.Context, page, pageSize int, filters map[string]string) (*apisix.PaginatedList, error) {
	params := apisix.NewQueryParams()
	for key, value := range filters {
		params.WithFilter(key, value)
	}

	if !c.capabilities.Capabilities(ctx).SupportsPagination {
		items, _, err := c.list(ctx, params)
		if err != nil {
			return nil, err
		}

		return &apisix.PaginatedList{
			Items:    items,
			Total:    len(items),
			Page:     1,
			PageSize: len(items),
			HasMore:  false,
		}, nil
	}

	page, pageSize = clampPage(page, pageSize)
	params.WithPage(page).WithPageSize(pageSize)

	items, meta, err := c.list(ctx, params)
	if err != nil {
		return nil, err
	}

	return paginatedResult(items, meta, page, pageSize), nil
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}

	switch {
	case pageSize < constants.MinPageSize:
		pageSize = constants.MinPageSize
	case pageSize > constants.MaxPageSize:
		pageSize = constants.MaxPageSize
	}

	return page, pageSize
}

// paginatedResult fills in whatever metadata the server left out. Without a
// total, a full page is taken to mean more may follow.
func paginatedResult(items []apisix.Entity, meta apisix.ListMeta, page, pageSize int) *apisix.PaginatedList {
	result := &apisix.PaginatedList{Items: items, Page: page, PageSize: pageSize}

	if meta.Total != nil {
		result.Total = *meta.Total
	} else {
		result.Total = (page-1)*pageSize + len(items)
	}

	switch {
	case meta.HasMore != nil:
		result.HasMore = *meta.HasMore
	case meta.Total != nil:
		result.HasMore = page*pageSize < *meta.Total
	default:
		result.HasMore = len(items) == pageSize
	}

	return result
}
