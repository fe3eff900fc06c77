package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/internal/http"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// ControlClient implements apisix.ControlClient against the control API.
type ControlClient struct {
	httpClient *http.Client
}

// NewControlClient creates a new control API client.
func NewControlClient(httpClient *http.Client) *ControlClient {
	return &ControlClient{
		httpClient: httpClient,
	}
}

// Healthcheck implements apisix.ControlClient.Healthcheck.
func (c *ControlClient) Healthcheck(ctx context.Context) ([]apisix.Entity, error) {
	return c.list(ctx, constants.ControlHealthcheck, "healthcheck")
}

// Schema implements apisix.ControlClient.Schema.
func (c *ControlClient) Schema(ctx context.Context) (apisix.Entity, error) {
	resp, err := c.httpClient.Get(ctx, constants.ControlSchema, nil)
	if err != nil {
		return nil, fmt.Errorf("getting schema: %w", err)
	}

	var schema apisix.Entity

	err = json.Unmarshal(resp.Body, &schema)
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", &apisix.ParseError{Format: "json", Index: -1, Err: err})
	}

	return schema, nil
}

// Plugins implements apisix.ControlClient.Plugins.
func (c *ControlClient) Plugins(ctx context.Context) ([]string, error) {
	resp, err := c.httpClient.Get(ctx, constants.ControlPluginsList, nil)
	if err != nil {
		return nil, fmt.Errorf("listing plugins: %w", err)
	}

	names := []string{}

	err = json.Unmarshal(resp.Body, &names)
	if err != nil {
		return nil, fmt.Errorf("parsing plugins: %w", &apisix.ParseError{Format: "json", Index: -1, Err: err})
	}

	return names, nil
}

// DumpRoutes implements apisix.ControlClient.DumpRoutes.
func (c *ControlClient) DumpRoutes(ctx context.Context) ([]apisix.Entity, error) {
	return c.list(ctx, constants.ControlRoutes, "routes")
}

// DumpRoute implements apisix.ControlClient.DumpRoute.
func (c *ControlClient) DumpRoute(ctx context.Context, id string) (apisix.Entity, error) {
	if id == "" {
		return nil, apisix.ErrIDRequired
	}

	resp, err := c.httpClient.Get(ctx, constants.ControlRoute+"/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("dumping route %s: %w", id, err)
	}

	route, err := apisix.ExtractValue(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing route %s: %w", id, err)
	}

	return route, nil
}

// DumpServices implements apisix.ControlClient.DumpServices.
func (c *ControlClient) DumpServices(ctx context.Context) ([]apisix.Entity, error) {
	return c.list(ctx, constants.ControlServices, "services")
}

// DumpUpstreams implements apisix.ControlClient.DumpUpstreams.
func (c *ControlClient) DumpUpstreams(ctx context.Context) ([]apisix.Entity, error) {
	return c.list(ctx, constants.ControlUpstreams, "upstreams")
}

// ReloadPlugins implements apisix.ControlClient.ReloadPlugins.
func (c *ControlClient) ReloadPlugins(ctx context.Context) error {
	_, err := c.httpClient.Put(ctx, constants.ControlPluginsReload, nil)
	if err != nil {
		return fmt.Errorf("reloading plugins: %w", err)
	}

	return nil
}

// Ping implements apisix.ControlClient.Ping. It never returns an error.
func (c *ControlClient) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.ShortHTTPTimeout)
	defer cancel()

	_, err := c.httpClient.Get(ctx, constants.ControlHealthcheck, nil)

	return err == nil
}

func (c *ControlClient) list(ctx context.Context, path, what string) ([]apisix.Entity, error) {
	resp, err := c.httpClient.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", what, err)
	}

	items, err := apisix.ExtractList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", what, err)
	}

	return items, nil
}
