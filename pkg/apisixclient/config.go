package apisixclient

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
const EnvPrefix = "APISIX"

// Configuration keys understood by LoadConfig. Each one can also be set
// through the environment, e.g. APISIX_ADMIN_URL.
const (
	KeyAdminURL           = "admin_url"
	KeyControlURL         = "control_url"
	KeyAPIKey             = "api_key"
	KeyTimeout            = "timeout"
	KeyServerVersion      = "server_version"
	KeyRetryMax           = "retry_max"
	KeyRetryWaitMin       = "retry_wait_min"
	KeyRetryWaitMax       = "retry_wait_max"
	KeyDebug              = "debug"
	KeyUserAgent          = "user_agent"
	KeyAssumeSecrets      = "capabilities.assume_secrets"
	KeyAssumeStreamRoutes = "capabilities.assume_stream_routes"
	KeyProbeOptionalAPIs  = "capabilities.probe_optional_apis"
)

// LoadConfig reads a client configuration from the file at path (any format
// viper understands, YAML in practice) overlaid with APISIX_* environment
// variables. An empty path reads the environment only. Logger and
// MetricsRegisterer are left for the caller to set.
func LoadConfig(path string) (*apisix.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	return &apisix.Config{
		AdminURL:      v.GetString(KeyAdminURL),
		ControlURL:    v.GetString(KeyControlURL),
		APIKey:        v.GetString(KeyAPIKey),
		Timeout:       v.GetDuration(KeyTimeout),
		ServerVersion: v.GetString(KeyServerVersion),
		RetryMax:      v.GetInt(KeyRetryMax),
		RetryWaitMin:  v.GetDuration(KeyRetryWaitMin),
		RetryWaitMax:  v.GetDuration(KeyRetryWaitMax),
		Debug:         v.GetBool(KeyDebug),
		UserAgent:     v.GetString(KeyUserAgent),
		CapabilityPolicy: &apisix.CapabilityPolicy{
			AssumeSecrets:      v.GetBool(KeyAssumeSecrets),
			AssumeStreamRoutes: v.GetBool(KeyAssumeStreamRoutes),
			ProbeOptionalAPIs:  v.GetBool(KeyProbeOptionalAPIs),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	policy := apisix.DefaultCapabilityPolicy()

	v.SetDefault(KeyAdminURL, constants.DefaultAdminURL)
	v.SetDefault(KeyControlURL, constants.DefaultControlURL)
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyTimeout, constants.DefaultHTTPTimeout)
	v.SetDefault(KeyServerVersion, "")
	v.SetDefault(KeyRetryMax, constants.DefaultRetryMax)
	v.SetDefault(KeyRetryWaitMin, constants.DefaultRetryWaitMin)
	v.SetDefault(KeyRetryWaitMax, constants.DefaultRetryWaitMax)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyUserAgent, constants.DefaultUserAgent)
	v.SetDefault(KeyAssumeSecrets, policy.AssumeSecrets)
	v.SetDefault(KeyAssumeStreamRoutes, policy.AssumeStreamRoutes)
	v.SetDefault(KeyProbeOptionalAPIs, policy.ProbeOptionalAPIs)
}
