package apisix

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResourceClient provides the generic primitives for one entity collection.
// List with no paging parameters always returns the complete collection.
type ResourceClient interface {
	Endpoint() string
	List(ctx context.Context, params *QueryParams) ([]Entity, error)
	ListPaginated(ctx context.Context, page, pageSize int, filters map[string]string) (*PaginatedList, error)
	Get(ctx context.Context, id string) (Entity, error)
	// Create stores data under id, or under a server-assigned id when id is empty.
	Create(ctx context.Context, id string, data Entity) (Entity, error)
	Update(ctx context.Context, id string, data Entity) (Entity, error)
	Patch(ctx context.Context, id string, data Entity) (Entity, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// ResourceProvider hands out resource clients by endpoint path.
type ResourceProvider interface {
	Resource(endpoint string) ResourceClient
}

// EntityClients provides the per-entity collections of the admin API.
type EntityClients interface {
	Routes() ResourceClient
	Services() ResourceClient
	Upstreams() ResourceClient
	Consumers() ResourceClient
	ConsumerGroups() ResourceClient
	SSLs() ResourceClient
	GlobalRules() ResourceClient
	PluginConfigs() ResourceClient
	PluginMetadata() ResourceClient
	Protos() ResourceClient
}

// GatedClients provides collections that only exist on some server revisions.
type GatedClients interface {
	Credentials(ctx context.Context, username string) (ResourceClient, error)
	Secrets(ctx context.Context) (ResourceClient, error)
	StreamRoutes(ctx context.Context) (ResourceClient, error)
}

// CapabilityClient exposes the resolved server capability set.
type CapabilityClient interface {
	Capabilities(ctx context.Context) CapabilitySet
	ResetCapabilities()
}

// ControlClient reads the runtime/introspection API.
type ControlClient interface {
	Healthcheck(ctx context.Context) ([]Entity, error)
	Schema(ctx context.Context) (Entity, error)
	Plugins(ctx context.Context) ([]string, error)
	DumpRoutes(ctx context.Context) ([]Entity, error)
	DumpRoute(ctx context.Context, id string) (Entity, error)
	DumpServices(ctx context.Context) ([]Entity, error)
	DumpUpstreams(ctx context.Context) ([]Entity, error)
	ReloadPlugins(ctx context.Context) error
	Ping(ctx context.Context) bool
}

// BulkClient runs the multi-entity operations against any collection.
type BulkClient interface {
	Batch(ctx context.Context, endpoint string, operations []BatchOperation, opts *BatchOptions) (*BatchSummary, error)
	ExportData(ctx context.Context, endpoint string, opts *ExportOptions) (string, error)
	ImportData(ctx context.Context, endpoint string, records []Entity, opts *ImportOptions) (*ImportResult, error)
	ImportString(ctx context.Context, endpoint, data string, opts *ImportOptions) (*ImportResult, error)
	Clone(ctx context.Context, endpoint, sourceID string, overrides Entity, newID string) (Entity, error)
}

// Client is the full gateway client.
type Client interface {
	ResourceProvider
	EntityClients
	GatedClients
	CapabilityClient
	BulkClient

	Control() ControlClient
	CheckConnectivity(ctx context.Context) bool
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// CapabilityPolicy controls the defaults used for features that have no
// reliable positive signal. Secrets and stream routes are assumed present
// unless a probe observes an explicit rejection.
type CapabilityPolicy struct {
	AssumeSecrets      bool
	AssumeStreamRoutes bool
	// ProbeOptionalAPIs enables list probes against secrets and stream routes
	// to look for an explicit 4xx rejection.
	ProbeOptionalAPIs bool
}

// DefaultCapabilityPolicy returns the default capability policy.
func DefaultCapabilityPolicy() *CapabilityPolicy {
	return &CapabilityPolicy{
		AssumeSecrets:      true,
		AssumeStreamRoutes: true,
		ProbeOptionalAPIs:  true,
	}
}

// Config represents client configuration.
//
// # Upstreams
//
// AdminURL and ControlURL are independent; a single call only ever targets one
// of them. The API key is sent to the admin API only.
//
// # Timeouts and retries
//
// Timeout is the per-call default; a context deadline shorter than it wins.
// Retries are disabled unless RetryMax > 0, and even then only idempotent
// reads are retried so that mutations are never silently duplicated.
//
// # Capabilities
//
// When ServerVersion is set (e.g. "3.8.0") it is trusted and no probing
// happens. Otherwise the client probes the admin API on first use.
type Config struct {
	// AdminURL: base URL of the admin API (e.g. "http://127.0.0.1:9180").
	AdminURL string
	// ControlURL: base URL of the control API (e.g. "http://127.0.0.1:9090").
	ControlURL string
	// APIKey: admin API key, sent as X-API-KEY.
	APIKey string

	// Timeout: default per-call timeout.
	Timeout time.Duration
	// ServerVersion: declared server version; skips capability probing.
	ServerVersion string
	// CapabilityPolicy: optional; DefaultCapabilityPolicy() is used when nil.
	CapabilityPolicy *CapabilityPolicy

	// RetryMax: maximum retries for idempotent reads. 0 disables retries.
	RetryMax int
	// RetryWaitMin: minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration

	// Debug: enables request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// MetricsRegisterer: when set, request metrics are registered on it.
	MetricsRegisterer prometheus.Registerer
}
