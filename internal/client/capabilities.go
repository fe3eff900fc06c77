package client

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/internal/http"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

const capabilitiesKey = "capabilities"

// CapabilityResolver detects what the admin server supports and memoizes the
// result. Detection never fails: any error along the way degrades to the
// conservative capability set. Concurrent first calls share one detection run.
type CapabilityResolver struct {
	httpClient    *http.Client
	serverVersion string
	policy        apisix.CapabilityPolicy
	logger        apisix.Logger

	group   singleflight.Group
	current atomic.Pointer[apisix.CapabilitySet]
}

// NewCapabilityResolver creates a resolver. A non-empty serverVersion is
// trusted and replaces the probes.
func NewCapabilityResolver(httpClient *http.Client, serverVersion string, policy *apisix.CapabilityPolicy, logger apisix.Logger) *CapabilityResolver {
	if policy == nil {
		policy = apisix.DefaultCapabilityPolicy()
	}

	if logger == nil {
		logger = apisix.NopLogger()
	}

	return &CapabilityResolver{
		httpClient:    httpClient,
		serverVersion: serverVersion,
		policy:        *policy,
		logger:        logger,
	}
}

// detection is the outcome of one shared detection run.
type detection struct {
	capabilities apisix.CapabilitySet
	stored       bool
}

// Capabilities returns the memoized capability set, detecting it on first use.
// A caller that joined a run whose result was not kept detects again while its
// own context is live.
func (r *CapabilityResolver) Capabilities(ctx context.Context) apisix.CapabilitySet {
	for {
		if current := r.current.Load(); current != nil {
			return *current
		}

		result, _, _ := r.group.Do(capabilitiesKey, func() (interface{}, error) {
			// Double-check after joining the flight
			if current := r.current.Load(); current != nil {
				return detection{capabilities: *current, stored: true}, nil
			}

			capabilities := r.detect(ctx)

			// a canceled caller must not pin a degraded set for everyone else
			if ctx.Err() != nil {
				return detection{capabilities: capabilities}, nil
			}

			r.current.Store(&capabilities)

			return detection{capabilities: capabilities, stored: true}, nil
		})

		outcome := result.(detection) //nolint:forcetypeassert // only detection is returned
		if outcome.stored || ctx.Err() != nil {
			return outcome.capabilities
		}
	}
}

// Reset drops the memoized set; the next call detects again.
func (r *CapabilityResolver) Reset() {
	r.current.Store(nil)
}

func (r *CapabilityResolver) detect(ctx context.Context) apisix.CapabilitySet {
	var capabilities apisix.CapabilitySet

	if declared, ok := r.declared(); ok {
		capabilities = declared
	} else {
		capabilities = r.probe(ctx)
	}

	plugins := r.plugins(ctx)

	r.logger.Debug("capabilities resolved", map[string]interface{}{
		"major_version":          capabilities.MajorVersion,
		"response_format":        string(capabilities.ResponseFormat),
		"supports_pagination":    capabilities.SupportsPagination,
		"supports_credentials":   capabilities.SupportsCredentials,
		"supports_secrets":       capabilities.SupportsSecrets,
		"supports_stream_routes": capabilities.SupportsStreamRoutes,
		"plugins":                len(plugins),
	})

	return capabilities.WithPlugins(plugins...)
}

// declared builds the capability set from the configured server version.
func (r *CapabilityResolver) declared() (apisix.CapabilitySet, bool) {
	if r.serverVersion == "" {
		return apisix.CapabilitySet{}, false
	}

	version, err := semver.NewVersion(r.serverVersion)
	if err != nil {
		r.logger.Warn("ignoring unparseable server version", map[string]interface{}{
			"server_version": r.serverVersion,
			"error":          err.Error(),
		})

		return apisix.CapabilitySet{}, false
	}

	if version.Major() < 3 {
		return apisix.CapabilitySet{
			MajorVersion:         strconv.FormatUint(version.Major(), 10),
			ResponseFormat:       apisix.ResponseFormatLegacy,
			SupportsStreamRoutes: r.policy.AssumeStreamRoutes,
		}, true
	}

	return apisix.CapabilitySet{
		MajorVersion:         strconv.FormatUint(version.Major(), 10),
		ResponseFormat:       apisix.ResponseFormatWrapped,
		SupportsPagination:   true,
		SupportsCredentials:  !version.LessThan(semver.MustParse(constants.CredentialsMinVersion)),
		SupportsSecrets:      r.policy.AssumeSecrets,
		SupportsStreamRoutes: r.policy.AssumeStreamRoutes,
	}, true
}

// probe runs the detection chain against the admin API.
func (r *CapabilityResolver) probe(ctx context.Context) apisix.CapabilitySet {
	ctx, cancel := context.WithTimeout(ctx, constants.ShortHTTPTimeout)
	defer cancel()

	query := apisix.NewQueryParams().WithPage(1).WithPageSize(constants.ProbePageSize).ToValues()

	resp, err := r.httpClient.Get(ctx, constants.PathRoutes, query)

	switch {
	case err == nil:
		capabilities := apisix.CapabilitySet{
			MajorVersion:       constants.MajorVersionModern,
			ResponseFormat:     apisix.DetectFormat(resp.Body),
			SupportsPagination: true,
		}
		capabilities.SupportsCredentials = r.probeCredentials(ctx)
		capabilities.SupportsSecrets = r.probeOptional(ctx, constants.PathSecrets, r.policy.AssumeSecrets)
		capabilities.SupportsStreamRoutes = r.probeOptional(ctx, constants.PathStreamRoutes, r.policy.AssumeStreamRoutes)

		return capabilities
	case apisix.IsClientError(err):
		r.logger.Debug("pagination rejected, assuming legacy server", map[string]interface{}{
			"status": apisix.StatusCode(err),
		})

		capabilities := apisix.ConservativeCapabilities()
		capabilities.SupportsSecrets = r.probeOptional(ctx, constants.PathSecrets, r.policy.AssumeSecrets)
		capabilities.SupportsStreamRoutes = r.probeOptional(ctx, constants.PathStreamRoutes, r.policy.AssumeStreamRoutes)

		return capabilities
	default:
		r.logger.Warn("capability probe failed, using conservative capabilities", map[string]interface{}{
			"error": err.Error(),
		})

		return apisix.ConservativeCapabilities()
	}
}

// probeCredentials lists the credentials of a placeholder consumer. Any
// failure means the API is absent.
func (r *CapabilityResolver) probeCredentials(ctx context.Context) bool {
	path := constants.PathConsumers + "/" + constants.ProbeConsumer + "/" + constants.CredentialsSegment

	_, err := r.httpClient.Get(ctx, path, nil)
	if err != nil {
		r.logger.Debug("credentials probe failed", map[string]interface{}{
			"error": err.Error(),
		})

		return false
	}

	return true
}

// probeOptional keeps assumed unless the list call is explicitly rejected.
func (r *CapabilityResolver) probeOptional(ctx context.Context, path string, assumed bool) bool {
	if !assumed || !r.policy.ProbeOptionalAPIs {
		return assumed
	}

	_, err := r.httpClient.Get(ctx, path, nil)
	if err != nil && apisix.IsClientError(err) {
		r.logger.Debug("optional API rejected", map[string]interface{}{
			"path":   path,
			"status": apisix.StatusCode(err),
		})

		return false
	}

	return assumed
}

// plugins reads the advertised plugin names; failure yields none.
func (r *CapabilityResolver) plugins(ctx context.Context) []string {
	resp, err := r.httpClient.Get(ctx, constants.PathPluginsList, nil)
	if err != nil {
		r.logger.Debug("plugin list unavailable", map[string]interface{}{
			"error": err.Error(),
		})

		return nil
	}

	var names []string

	err = json.Unmarshal(resp.Body, &names)
	if err != nil {
		r.logger.Debug("plugin list unreadable", map[string]interface{}{
			"error": err.Error(),
		})

		return nil
	}

	return names
}
