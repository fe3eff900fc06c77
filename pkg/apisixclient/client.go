package apisixclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/apisix-client/internal/client"
	"github.com/fivetwenty-io/apisix-client/pkg/apisix"
)

// New creates a new gateway client. Both upstream URLs are normalized: a
// trailing slash is dropped and http:// is assumed when no scheme is given.
// No request is sent; capabilities are detected on first use.
func New(ctx context.Context, config *apisix.Config) (apisix.Client, error) {
	if config == nil {
		return nil, apisix.ErrConfigRequired
	}

	if config.AdminURL == "" {
		return nil, apisix.ErrAdminURLRequired
	}

	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	normalized := *config
	normalized.AdminURL = normalizeURL(config.AdminURL)

	if config.ControlURL != "" {
		normalized.ControlURL = normalizeURL(config.ControlURL)
	}

	gatewayClient, err := client.New(&normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return gatewayClient, nil
}

// NewWithEndpoint creates a client for an admin URL and API key with defaults
// for everything else.
func NewWithEndpoint(ctx context.Context, adminURL, apiKey string) (apisix.Client, error) {
	return New(ctx, &apisix.Config{
		AdminURL: adminURL,
		APIKey:   apiKey,
	})
}

// NewFromFile loads a configuration with LoadConfig and creates a client from it.
func NewFromFile(ctx context.Context, path string) (apisix.Client, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return New(ctx, config)
}

func normalizeURL(raw string) string {
	normalized := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "http://" + normalized
	}

	return normalized
}
