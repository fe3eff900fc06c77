package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/internal/http"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// capabilitySource is the part of the resolver a resource client depends on.
type capabilitySource interface {
	Capabilities(ctx context.Context) apisix.CapabilitySet
}

// ResourceClient implements apisix.ResourceClient for one admin collection.
// Every entity-specific accessor is an instance of it with a different endpoint.
type ResourceClient struct {
	httpClient   *http.Client
	endpoint     string
	capabilities capabilitySource
	profile      constants.EntityProfile
}

// NewResourceClient creates a new resource client for endpoint.
func NewResourceClient(httpClient *http.Client, endpoint string, capabilities capabilitySource) *ResourceClient {
	return &ResourceClient{
		httpClient:   httpClient,
		endpoint:     strings.TrimRight(endpoint, "/"),
		capabilities: capabilities,
		profile:      constants.ProfileFor(endpoint),
	}
}

// Endpoint implements apisix.ResourceClient.Endpoint.
func (c *ResourceClient) Endpoint() string {
	return c.endpoint
}

func (c *ResourceClient) entityPath(id string) string {
	return c.endpoint + "/" + id
}

// List implements apisix.ResourceClient.List. Paging parameters are dropped
// for servers that reject them, in which case the complete collection is returned.
func (c *ResourceClient) List(ctx context.Context, params *apisix.QueryParams) ([]apisix.Entity, error) {
	items, _, err := c.list(ctx, params)

	return items, err
}

func (c *ResourceClient) list(ctx context.Context, params *apisix.QueryParams) ([]apisix.Entity, apisix.ListMeta, error) {
	if params.HasPaging() && !c.capabilities.Capabilities(ctx).SupportsPagination {
		params = params.WithoutPaging()
	}

	var query url.Values
	if params != nil {
		query = params.ToValues()
	}

	resp, err := c.httpClient.Get(ctx, c.endpoint, query)
	if err != nil {
		return nil, apisix.ListMeta{}, fmt.Errorf("listing %s: %w", c.endpoint, err)
	}

	items, meta, err := apisix.ExtractListWithMeta(resp.Body)
	if err != nil {
		return nil, apisix.ListMeta{}, fmt.Errorf("parsing %s list: %w", c.endpoint, err)
	}

	return items, meta, nil
}

// Get implements apisix.ResourceClient.Get.
func (c *ResourceClient) Get(ctx context.Context, id string) (apisix.Entity, error) {
	if id == "" {
		return nil, apisix.ErrIDRequired
	}

	resp, err := c.httpClient.Get(ctx, c.entityPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", c.entityPath(id), err)
	}

	entity, err := apisix.ExtractValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", c.entityPath(id), err)
	}

	return entity, nil
}

// Create implements apisix.ResourceClient.Create. With an id, given or carried
// in data, the entity is written with PUT; without one the server assigns the
// id (POST). Collections
// keyed by a field other than id (consumers) are always written to the
// collection path with the identity in the body.
func (c *ResourceClient) Create(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	if c.profile.IdentityField != constants.FieldID {
		return c.putCollection(ctx, id, data)
	}

	err := c.preflight(data)
	if err != nil {
		return nil, err
	}

	if id == "" {
		id = data.ID()
	}

	if id == "" {
		resp, err := c.httpClient.Post(ctx, c.endpoint, data)
		if err != nil {
			return nil, fmt.Errorf("creating in %s: %w", c.endpoint, err)
		}

		return c.written(resp, "", data)
	}

	resp, err := c.httpClient.Put(ctx, c.entityPath(id), data)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", c.entityPath(id), err)
	}

	return c.written(resp, id, data)
}

// Update implements apisix.ResourceClient.Update. The entity is overwritten.
func (c *ResourceClient) Update(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	if id == "" {
		return nil, apisix.ErrIDRequired
	}

	if c.profile.IdentityField != constants.FieldID {
		return c.putCollection(ctx, id, data)
	}

	err := c.preflight(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Put(ctx, c.entityPath(id), data)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", c.entityPath(id), err)
	}

	return c.written(resp, id, data)
}

// Patch implements apisix.ResourceClient.Patch.
func (c *ResourceClient) Patch(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	if id == "" {
		return nil, apisix.ErrIDRequired
	}

	if len(data) == 0 {
		return nil, apisix.ErrDataRequired
	}

	resp, err := c.httpClient.Patch(ctx, c.entityPath(id), data)
	if err != nil {
		return nil, fmt.Errorf("patching %s: %w", c.entityPath(id), err)
	}

	return c.written(resp, id, data)
}

// Delete implements apisix.ResourceClient.Delete.
func (c *ResourceClient) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apisix.ErrIDRequired
	}

	_, err := c.httpClient.Delete(ctx, c.entityPath(id))
	if err != nil {
		return fmt.Errorf("deleting %s: %w", c.entityPath(id), err)
	}

	return nil
}

// Exists implements apisix.ResourceClient.Exists.
func (c *ResourceClient) Exists(ctx context.Context, id string) (bool, error) {
	_, err := c.Get(ctx, id)
	if err == nil {
		return true, nil
	}

	if apisix.IsNotFound(err) {
		return false, nil
	}

	return false, err
}

// putCollection writes an entity keyed by a body field. The identity is set
// before the pre-flight check so that it counts as present.
func (c *ResourceClient) putCollection(ctx context.Context, id string, data apisix.Entity) (apisix.Entity, error) {
	body := data
	if id != "" && len(data) > 0 {
		body = data.Copy()
		body[c.profile.IdentityField] = id
	}

	err := c.preflight(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Put(ctx, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("writing %s to %s: %w", id, c.endpoint, err)
	}

	return c.written(resp, id, body)
}

func (c *ResourceClient) preflight(data apisix.Entity) error {
	if len(data) == 0 {
		return apisix.ErrDataRequired
	}

	if apisix.RequiresValidation(c.endpoint) {
		return apisix.ValidateEntity(c.endpoint, data)
	}

	return nil
}

// written normalizes a write response. Servers that answer without a body
// get the sent data back with the id filled in.
func (c *ResourceClient) written(resp *http.Response, id string, sent apisix.Entity) (apisix.Entity, error) {
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		entity := sent.Copy()
		if id != "" && c.profile.IdentityField == constants.FieldID {
			entity[constants.FieldID] = id
		}

		return entity, nil
	}

	entity, err := apisix.ExtractValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s write response: %w", c.endpoint, err)
	}

	return entity, nil
}
