package apisixclient_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apisix-client/internal/gatewaytest"
	"github.com/fivetwenty-io/apisix-client/pkg/apisixclient"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "apisix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "api_key: secret\n")

	config, err := apisixclient.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9180", config.AdminURL)
	assert.Equal(t, "http://127.0.0.1:9090", config.ControlURL)
	assert.Equal(t, "secret", config.APIKey)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Zero(t, config.RetryMax)
	assert.Empty(t, config.ServerVersion)
	assert.True(t, config.CapabilityPolicy.AssumeSecrets)
	assert.True(t, config.CapabilityPolicy.ProbeOptionalAPIs)
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
admin_url: http://gateway:9180
control_url: http://gateway:9090
api_key: file-key
timeout: 7s
server_version: 3.8.0
retry_max: 3
retry_wait_min: 200ms
retry_wait_max: 2s
debug: true
user_agent: ops-tool/1.0
capabilities:
  assume_secrets: false
  probe_optional_apis: false
`)

	config, err := apisixclient.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gateway:9180", config.AdminURL)
	assert.Equal(t, "http://gateway:9090", config.ControlURL)
	assert.Equal(t, "file-key", config.APIKey)
	assert.Equal(t, 7*time.Second, config.Timeout)
	assert.Equal(t, "3.8.0", config.ServerVersion)
	assert.Equal(t, 3, config.RetryMax)
	assert.Equal(t, 200*time.Millisecond, config.RetryWaitMin)
	assert.Equal(t, 2*time.Second, config.RetryWaitMax)
	assert.True(t, config.Debug)
	assert.Equal(t, "ops-tool/1.0", config.UserAgent)
	assert.False(t, config.CapabilityPolicy.AssumeSecrets)
	assert.True(t, config.CapabilityPolicy.AssumeStreamRoutes)
	assert.False(t, config.CapabilityPolicy.ProbeOptionalAPIs)
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Parallel()

	_, err := apisixclient.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

//nolint:paralleltest // t.Setenv cannot be used with parallel tests
func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "admin_url: http://from-file:9180\napi_key: file-key\n")

	t.Setenv("APISIX_API_KEY", "env-key")
	t.Setenv("APISIX_TIMEOUT", "3s")
	t.Setenv("APISIX_CAPABILITIES_ASSUME_STREAM_ROUTES", "false")

	config, err := apisixclient.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:9180", config.AdminURL)
	assert.Equal(t, "env-key", config.APIKey)
	assert.Equal(t, 3*time.Second, config.Timeout)
	assert.False(t, config.CapabilityPolicy.AssumeStreamRoutes)
}

func TestNewFromFile(t *testing.T) {
	t.Parallel()

	gateway := gatewaytest.New(gatewaytest.WithAPIKey("file-key"))
	t.Cleanup(gateway.Close)

	path := writeConfig(t, "admin_url: "+gateway.URL+"\ncontrol_url: "+gateway.URL+"\napi_key: file-key\nserver_version: 3.8.0\n")

	client, err := apisixclient.NewFromFile(context.Background(), path)
	require.NoError(t, err)

	capabilities := client.Capabilities(context.Background())
	assert.True(t, capabilities.SupportsCredentials)
	assert.True(t, client.CheckConnectivity(context.Background()))
}
