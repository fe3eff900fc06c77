package client

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/internal/http"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// Client implements the apisix.Client interface.
type Client struct {
	admin    *http.Client
	control  *ControlClient
	resolver *CapabilityResolver
	logger   apisix.Logger

	batch    *apisix.BatchExecutor
	transfer *apisix.TransferEngine
	cloner   *apisix.Cloner

	// Resource clients
	routes         *ResourceClient
	services       *ResourceClient
	upstreams      *ResourceClient
	consumers      *ResourceClient
	consumerGroups *ResourceClient
	ssls           *ResourceClient
	globalRules    *ResourceClient
	pluginConfigs  *ResourceClient
	pluginMetadata *ResourceClient
	protos         *ResourceClient
}

// createHTTPClientOptions builds transport options shared by both upstreams.
func createHTTPClientOptions(config *apisix.Config, metrics *http.Metrics) []http.Option {
	httpOpts := []http.Option{
		http.WithMetrics(metrics),
	}

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.Timeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.Timeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// New creates a new gateway client. No request is sent until the first call.
func New(config *apisix.Config) (*Client, error) {
	if config == nil {
		return nil, apisix.ErrConfigRequired
	}

	if config.AdminURL == "" {
		return nil, apisix.ErrAdminURLRequired
	}

	controlURL := config.ControlURL
	if controlURL == "" {
		controlURL = constants.DefaultControlURL
	}

	metrics, err := http.NewMetrics(config.MetricsRegisterer)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = apisix.NopLogger()
	}

	httpOpts := createHTTPClientOptions(config, metrics)

	admin := http.NewClient(config.AdminURL, slices.Concat(httpOpts, []http.Option{
		http.WithUpstream(constants.UpstreamAdmin),
		http.WithAPIKey(config.APIKey),
	})...)

	control := http.NewClient(controlURL, slices.Concat(httpOpts, []http.Option{
		http.WithUpstream(constants.UpstreamControl),
	})...)

	client := &Client{
		admin:    admin,
		control:  NewControlClient(control),
		resolver: NewCapabilityResolver(admin, config.ServerVersion, config.CapabilityPolicy, logger),
		logger:   logger,
	}

	client.batch = apisix.NewBatchExecutor(client, logger)
	client.transfer = apisix.NewTransferEngine(client, logger)
	client.cloner = apisix.NewCloner(client, logger)

	client.initializeResourceClients()

	return client, nil
}

func (c *Client) initializeResourceClients() {
	c.routes = c.newResource(constants.PathRoutes)
	c.services = c.newResource(constants.PathServices)
	c.upstreams = c.newResource(constants.PathUpstreams)
	c.consumers = c.newResource(constants.PathConsumers)
	c.consumerGroups = c.newResource(constants.PathConsumerGroups)
	c.ssls = c.newResource(constants.PathSSLs)
	c.globalRules = c.newResource(constants.PathGlobalRules)
	c.pluginConfigs = c.newResource(constants.PathPluginConfigs)
	c.pluginMetadata = c.newResource(constants.PathPluginMetadata)
	c.protos = c.newResource(constants.PathProtos)
}

func (c *Client) newResource(endpoint string) *ResourceClient {
	return NewResourceClient(c.admin, endpoint, c.resolver)
}

// Resource implements apisix.ResourceProvider.Resource. endpoint may be a
// full admin path ("/apisix/admin/routes") or relative to it ("routes").
func (c *Client) Resource(endpoint string) apisix.ResourceClient {
	return c.newResource(adminPath(endpoint))
}

func adminPath(endpoint string) string {
	if strings.HasPrefix(endpoint, constants.AdminPrefix+"/") {
		return endpoint
	}

	return constants.AdminPrefix + "/" + strings.Trim(endpoint, "/")
}

// Capabilities implements apisix.CapabilityClient.Capabilities.
func (c *Client) Capabilities(ctx context.Context) apisix.CapabilitySet {
	return c.resolver.Capabilities(ctx)
}

// ResetCapabilities implements apisix.CapabilityClient.ResetCapabilities.
func (c *Client) ResetCapabilities() {
	c.resolver.Reset()
}

// Control implements apisix.Client.Control.
func (c *Client) Control() apisix.ControlClient {
	return c.control
}

// CheckConnectivity implements apisix.Client.CheckConnectivity. It reports
// false instead of returning an error.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.ShortHTTPTimeout)
	defer cancel()

	_, err := c.admin.Get(ctx, constants.PathRoutes, nil)
	if err != nil {
		c.logger.Warn("admin API unreachable", map[string]interface{}{
			"error": err.Error(),
		})

		return false
	}

	return true
}

// Batch implements apisix.BulkClient.Batch.
func (c *Client) Batch(ctx context.Context, endpoint string, operations []apisix.BatchOperation, opts *apisix.BatchOptions) (*apisix.BatchSummary, error) {
	return c.batch.Execute(ctx, endpoint, operations, opts)
}

// ExportData implements apisix.BulkClient.ExportData.
func (c *Client) ExportData(ctx context.Context, endpoint string, opts *apisix.ExportOptions) (string, error) {
	return c.transfer.ExportData(ctx, endpoint, opts)
}

// ImportData implements apisix.BulkClient.ImportData.
func (c *Client) ImportData(ctx context.Context, endpoint string, records []apisix.Entity, opts *apisix.ImportOptions) (*apisix.ImportResult, error) {
	return c.transfer.ImportData(ctx, endpoint, records, opts)
}

// ImportString implements apisix.BulkClient.ImportString.
func (c *Client) ImportString(ctx context.Context, endpoint, data string, opts *apisix.ImportOptions) (*apisix.ImportResult, error) {
	return c.transfer.ImportString(ctx, endpoint, data, opts)
}

// Clone implements apisix.BulkClient.Clone.
func (c *Client) Clone(ctx context.Context, endpoint, sourceID string, overrides apisix.Entity, newID string) (apisix.Entity, error) {
	return c.cloner.Clone(ctx, endpoint, sourceID, overrides, newID)
}

// Resource client accessors

// Routes implements apisix.EntityClients.Routes.
func (c *Client) Routes() apisix.ResourceClient {
	return c.routes
}

// Services implements apisix.EntityClients.Services.
func (c *Client) Services() apisix.ResourceClient {
	return c.services
}

// Upstreams implements apisix.EntityClients.Upstreams.
func (c *Client) Upstreams() apisix.ResourceClient {
	return c.upstreams
}

// Consumers implements apisix.EntityClients.Consumers.
func (c *Client) Consumers() apisix.ResourceClient {
	return c.consumers
}

// ConsumerGroups implements apisix.EntityClients.ConsumerGroups.
func (c *Client) ConsumerGroups() apisix.ResourceClient {
	return c.consumerGroups
}

// SSLs implements apisix.EntityClients.SSLs.
func (c *Client) SSLs() apisix.ResourceClient {
	return c.ssls
}

// GlobalRules implements apisix.EntityClients.GlobalRules.
func (c *Client) GlobalRules() apisix.ResourceClient {
	return c.globalRules
}

// PluginConfigs implements apisix.EntityClients.PluginConfigs.
func (c *Client) PluginConfigs() apisix.ResourceClient {
	return c.pluginConfigs
}

// PluginMetadata implements apisix.EntityClients.PluginMetadata.
func (c *Client) PluginMetadata() apisix.ResourceClient {
	return c.pluginMetadata
}

// Protos implements apisix.EntityClients.Protos.
func (c *Client) Protos() apisix.ResourceClient {
	return c.protos
}

// Credentials implements apisix.GatedClients.Credentials.
func (c *Client) Credentials(ctx context.Context, username string) (apisix.ResourceClient, error) {
	if username == "" {
		return nil, apisix.ErrIDRequired
	}

	if !c.Capabilities(ctx).SupportsCredentials {
		return nil, fmt.Errorf("%w: consumer credentials", apisix.ErrFeatureUnsupported)
	}

	return c.newResource(constants.PathConsumers + "/" + username + "/" + constants.CredentialsSegment), nil
}

// Secrets implements apisix.GatedClients.Secrets.
func (c *Client) Secrets(ctx context.Context) (apisix.ResourceClient, error) {
	if !c.Capabilities(ctx).SupportsSecrets {
		return nil, fmt.Errorf("%w: secrets", apisix.ErrFeatureUnsupported)
	}

	return c.newResource(constants.PathSecrets), nil
}

// StreamRoutes implements apisix.GatedClients.StreamRoutes.
func (c *Client) StreamRoutes(ctx context.Context) (apisix.ResourceClient, error) {
	if !c.Capabilities(ctx).SupportsStreamRoutes {
		return nil, fmt.Errorf("%w: stream routes", apisix.ErrFeatureUnsupported)
	}

	return c.newResource(constants.PathStreamRoutes), nil
}
