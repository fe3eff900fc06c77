package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default per-call timeout for gateway requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for probes and connectivity checks.
	ShortHTTPTimeout = 5 * time.Second
)

// Retry limits. Retries are off unless the caller opts in.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Default upstream endpoints.
const (
	DefaultAdminURL   = "http://127.0.0.1:9180"
	DefaultControlURL = "http://127.0.0.1:9090"
	DefaultUserAgent  = "apisix-client-go"
)

// Header names.
const (
	HeaderAPIKey      = "X-API-KEY"
	HeaderRequestID   = "X-Request-ID"
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderUserAgent   = "User-Agent"
	ContentTypeJSON   = "application/json"
)

// Pagination parameters understood by 3.x admin servers.
const (
	QueryPage     = "page"
	QueryPageSize = "page_size"

	// ProbePageSize is the page size used by the pagination probe.
	ProbePageSize = 10

	// MinPageSize and MaxPageSize are the bounds enforced by the admin API.
	MinPageSize = 10
	MaxPageSize = 500
)

// Server major versions.
const (
	MajorVersionLegacy = "2"
	MajorVersionModern = "3"
)

// CredentialsMinVersion is the first release that ships the consumer credentials API.
const CredentialsMinVersion = "3.7.0"

// Admin API paths.
const (
	AdminPrefix = "/apisix/admin"

	PathRoutes         = AdminPrefix + "/routes"
	PathServices       = AdminPrefix + "/services"
	PathUpstreams      = AdminPrefix + "/upstreams"
	PathConsumers      = AdminPrefix + "/consumers"
	PathConsumerGroups = AdminPrefix + "/consumer_groups"
	PathSSLs           = AdminPrefix + "/ssls"
	PathGlobalRules    = AdminPrefix + "/global_rules"
	PathPluginConfigs  = AdminPrefix + "/plugin_configs"
	PathPluginMetadata = AdminPrefix + "/plugin_metadata"
	PathProtos         = AdminPrefix + "/protos"
	PathStreamRoutes   = AdminPrefix + "/stream_routes"
	PathSecrets        = AdminPrefix + "/secrets"
	PathPluginsList    = AdminPrefix + "/plugins/list"

	// CredentialsSegment is appended to a consumer path.
	CredentialsSegment = "credentials"

	// ProbeConsumer is the consumer name used when probing the credentials API.
	ProbeConsumer = "__capability_probe__"
)

// Control API paths.
const (
	ControlHealthcheck   = "/v1/healthcheck"
	ControlSchema        = "/v1/schema"
	ControlRoutes        = "/v1/routes"
	ControlRoute         = "/v1/route"
	ControlServices      = "/v1/services"
	ControlUpstreams     = "/v1/upstreams"
	ControlPluginsList   = "/v1/plugins/list"
	ControlPluginsReload = "/v1/plugins/reload"
)

// Common entity fields.
const (
	FieldID         = "id"
	FieldCreateTime = "create_time"
	FieldUpdateTime = "update_time"
	FieldUsername   = "username"
)

// Upstream labels used in metrics and errors.
const (
	UpstreamAdmin   = "admin"
	UpstreamControl = "control"
)
