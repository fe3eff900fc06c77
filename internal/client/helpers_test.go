package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apisix-client/internal/gatewaytest"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

const testAPIKey = "edd1c9f034335f136f87ad84b625c8f1"

// newTestGateway starts a fake gateway that requires testAPIKey.
func newTestGateway(t *testing.T, opts ...gatewaytest.Option) *gatewaytest.Server {
	t.Helper()

	gateway := gatewaytest.New(append([]gatewaytest.Option{gatewaytest.WithAPIKey(testAPIKey)}, opts...)...)
	t.Cleanup(gateway.Close)

	return gateway
}

// newTestClient creates a client pointed at gateway for both upstreams.
func newTestClient(t *testing.T, gateway *gatewaytest.Server, mutators ...func(*apisix.Config)) *Client {
	t.Helper()

	config := &apisix.Config{
		AdminURL:   gateway.URL,
		ControlURL: gateway.URL,
		APIKey:     testAPIKey,
	}

	for _, mutate := range mutators {
		mutate(config)
	}

	client, err := New(config)
	require.NoError(t, err)

	return client
}

// bothModes runs fn against a modern and a legacy gateway.
func bothModes(t *testing.T, fn func(t *testing.T, gateway *gatewaytest.Server, client *Client)) {
	t.Helper()

	modes := []struct {
		name string
		mode gatewaytest.Mode
	}{
		{name: "modern", mode: gatewaytest.ModeModern},
		{name: "legacy", mode: gatewaytest.ModeLegacy},
	}

	for _, testCase := range modes {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			gateway := newTestGateway(t, gatewaytest.WithMode(testCase.mode))
			fn(t, gateway, newTestClient(t, gateway))
		})
	}
}
