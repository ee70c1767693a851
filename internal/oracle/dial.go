package oracle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"subgraphMonitor/internal/chain"
)

// TokenPlaceholder is replaced by the oracle API token in endpoint URLs.
const TokenPlaceholder = "{token}"

// Dial connects a chain client per network endpoint and returns an Oracle
// owning them.
func Dial(ctx context.Context, endpoints map[string]string, token string, opts Options, logger *zap.Logger) (*Oracle, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one oracle network is required")
	}

	clients := make(map[string]HeadClient, len(endpoints))
	var closers []func()
	for network, endpoint := range endpoints {
		url, err := expandEndpoint(endpoint, token)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("network %s: %w", network, err)
		}
		client, err := chain.NewClient(ctx, url)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("dial network %s: %w", network, err)
		}
		clients[network] = client
		closers = append(closers, client.Close)
	}

	o := New(clients, opts, logger)
	o.closers = closers
	return o, nil
}

func expandEndpoint(endpoint, token string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if !strings.Contains(endpoint, TokenPlaceholder) {
		return endpoint, nil
	}
	if token == "" {
		return "", fmt.Errorf("oracle token is required by endpoint")
	}
	return strings.ReplaceAll(endpoint, TokenPlaceholder, token), nil
}

func closeAll(closers []func()) {
	for _, closeFn := range closers {
		closeFn()
	}
}
