package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apisix-client/internal/gatewaytest"
	internalhttp "github.com/fivetwenty-io/apisix-client/internal/http"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

func newTestResolver(t *testing.T, gateway *gatewaytest.Server, serverVersion string, policy *apisix.CapabilityPolicy) *CapabilityResolver {
	t.Helper()

	httpClient := internalhttp.NewClient(gateway.URL, internalhttp.WithAPIKey(testAPIKey))

	return NewCapabilityResolver(httpClient, serverVersion, policy, nil)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCapabilityResolver_Probe(t *testing.T) {
	t.Parallel()

	t.Run("modern server", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t, gatewaytest.WithPlugins("limit-count", "key-auth"))
		capabilities := newTestResolver(t, gateway, "", nil).Capabilities(context.Background())

		assert.Equal(t, "3", capabilities.MajorVersion)
		assert.Equal(t, apisix.ResponseFormatWrapped, capabilities.ResponseFormat)
		assert.True(t, capabilities.SupportsPagination)
		assert.True(t, capabilities.SupportsCredentials)
		assert.True(t, capabilities.SupportsSecrets)
		assert.True(t, capabilities.SupportsStreamRoutes)
		assert.Equal(t, []string{"key-auth", "limit-count"}, capabilities.SupportedPlugins())
		assert.True(t, capabilities.SupportsPlugin("limit-count"))
		assert.False(t, capabilities.SupportsPlugin("jwt-auth"))
	})

	t.Run("modern server without credentials", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t, gatewaytest.WithCredentials(false), gatewaytest.WithStreamRoutes(false))
		capabilities := newTestResolver(t, gateway, "", nil).Capabilities(context.Background())

		assert.True(t, capabilities.SupportsPagination)
		assert.False(t, capabilities.SupportsCredentials)
		assert.False(t, capabilities.SupportsStreamRoutes)
	})

	t.Run("legacy server rejects pagination", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t, gatewaytest.WithMode(gatewaytest.ModeLegacy))
		capabilities := newTestResolver(t, gateway, "", nil).Capabilities(context.Background())

		assert.Equal(t, "2", capabilities.MajorVersion)
		assert.Equal(t, apisix.ResponseFormatLegacy, capabilities.ResponseFormat)
		assert.False(t, capabilities.SupportsPagination)
		assert.False(t, capabilities.SupportsCredentials)
		assert.False(t, capabilities.SupportsSecrets)
		assert.True(t, capabilities.SupportsStreamRoutes)
	})

	t.Run("server error falls back to conservative", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t)
		gateway.FailOn(http.MethodGet, "/apisix/admin/routes", http.StatusInternalServerError)

		capabilities := newTestResolver(t, gateway, "", nil).Capabilities(context.Background())

		assert.Equal(t, "2", capabilities.MajorVersion)
		assert.False(t, capabilities.SupportsPagination)
		assert.False(t, capabilities.SupportsCredentials)
		assert.False(t, capabilities.SupportsSecrets)
		assert.False(t, capabilities.SupportsStreamRoutes)
	})

	t.Run("unreachable server falls back to conservative", func(t *testing.T) {
		t.Parallel()

		gateway := gatewaytest.New()
		gateway.Close()

		capabilities := newTestResolver(t, gateway, "", nil).Capabilities(context.Background())

		assert.Equal(t, apisix.ConservativeCapabilities().MajorVersion, capabilities.MajorVersion)
		assert.False(t, capabilities.SupportsPagination)
		assert.Empty(t, capabilities.SupportedPlugins())
	})

	t.Run("policy disables optional APIs without probing", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t)
		policy := &apisix.CapabilityPolicy{}

		capabilities := newTestResolver(t, gateway, "", policy).Capabilities(context.Background())

		assert.False(t, capabilities.SupportsSecrets)
		assert.False(t, capabilities.SupportsStreamRoutes)
		assert.Zero(t, gateway.Count(http.MethodGet, "/apisix/admin/secrets"))
		assert.Zero(t, gateway.Count(http.MethodGet, "/apisix/admin/stream_routes"))
	})

	t.Run("policy keeps optional APIs when probing is off", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t, gatewaytest.WithSecrets(false))
		policy := &apisix.CapabilityPolicy{AssumeSecrets: true, AssumeStreamRoutes: true}

		capabilities := newTestResolver(t, gateway, "", policy).Capabilities(context.Background())

		assert.True(t, capabilities.SupportsSecrets)
		assert.Zero(t, gateway.Count(http.MethodGet, "/apisix/admin/secrets"))
	})
}

func TestCapabilityResolver_DeclaredVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		version     string
		major       string
		pagination  bool
		credentials bool
		secrets     bool
	}{
		{name: "3.8", version: "3.8.0", major: "3", pagination: true, credentials: true, secrets: true},
		{name: "3.2", version: "3.2.1", major: "3", pagination: true, credentials: false, secrets: true},
		{name: "2.15", version: "2.15.3", major: "2", pagination: false, credentials: false, secrets: false},
		{name: "v prefix", version: "v3.7.0", major: "3", pagination: true, credentials: true, secrets: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			gateway := newTestGateway(t)
			capabilities := newTestResolver(t, gateway, testCase.version, nil).Capabilities(context.Background())

			assert.Equal(t, testCase.major, capabilities.MajorVersion)
			assert.Equal(t, testCase.pagination, capabilities.SupportsPagination)
			assert.Equal(t, testCase.credentials, capabilities.SupportsCredentials)
			assert.Equal(t, testCase.secrets, capabilities.SupportsSecrets)
			assert.True(t, capabilities.SupportsStreamRoutes)

			// declared versions are trusted: only plugin discovery hits the server
			assert.Zero(t, gateway.Count(http.MethodGet, "/apisix/admin/routes"))
			assert.Equal(t, 1, gateway.Count(http.MethodGet, "/apisix/admin/plugins/list"))
		})
	}

	t.Run("unparseable version probes", func(t *testing.T) {
		t.Parallel()

		gateway := newTestGateway(t, gatewaytest.WithMode(gatewaytest.ModeLegacy))
		capabilities := newTestResolver(t, gateway, "latest", nil).Capabilities(context.Background())

		assert.Equal(t, "2", capabilities.MajorVersion)
		assert.Equal(t, 1, gateway.Count(http.MethodGet, "/apisix/admin/routes"))
	})
}

func TestCapabilityResolver_Memoization(t *testing.T) {
	t.Parallel()

	gateway := newTestGateway(t)
	resolver := newTestResolver(t, gateway, "", nil)

	var wg sync.WaitGroup

	results := make([]apisix.CapabilitySet, 16)

	for i := range results {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			results[index] = resolver.Capabilities(context.Background())
		}(i)
	}

	wg.Wait()

	for _, result := range results {
		assert.True(t, result.SupportsPagination)
	}

	again := resolver.Capabilities(context.Background())
	assert.True(t, again.SupportsPagination)
	assert.Equal(t, 1, gateway.Count(http.MethodGet, "/apisix/admin/routes"))

	resolver.Reset()

	_ = resolver.Capabilities(context.Background())
	assert.Equal(t, 2, gateway.Count(http.MethodGet, "/apisix/admin/routes"))
}

func TestCapabilityResolver_CanceledContextNotCached(t *testing.T) {
	t.Parallel()

	gateway := newTestGateway(t)
	resolver := newTestResolver(t, gateway, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	capabilities := resolver.Capabilities(ctx)
	require.False(t, capabilities.SupportsPagination)

	capabilities = resolver.Capabilities(context.Background())
	assert.True(t, capabilities.SupportsPagination)
}

func TestCapabilityResolver_JoinedCallerSurvivesCanceledLeader(t *testing.T) {
	t.Parallel()

	gateway := newTestGateway(t)

	target, err := url.Parse(gateway.URL)
	require.NoError(t, err)

	proxy := httputil.NewSingleHostReverseProxy(target)
	arrived := make(chan struct{})

	var routeCalls atomic.Int32

	// the first routes request hangs until its caller gives up
	front := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/apisix/admin/routes" && routeCalls.Add(1) == 1 {
			close(arrived)
			<-request.Context().Done()

			return
		}

		proxy.ServeHTTP(writer, request)
	}))
	defer front.Close()

	httpClient := internalhttp.NewClient(front.URL, internalhttp.WithAPIKey(testAPIKey))
	resolver := NewCapabilityResolver(httpClient, "", nil, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())

	var leader apisix.CapabilitySet

	leaderDone := make(chan struct{})

	go func() {
		defer close(leaderDone)

		leader = resolver.Capabilities(leaderCtx)
	}()

	<-arrived

	joinedDone := make(chan apisix.CapabilitySet, 1)

	go func() {
		joinedDone <- resolver.Capabilities(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-leaderDone

	joined := <-joinedDone

	assert.False(t, leader.SupportsPagination)
	assert.True(t, joined.SupportsPagination)
	assert.True(t, resolver.Capabilities(context.Background()).SupportsPagination)
}
