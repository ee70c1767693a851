package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"subgraphMonitor/internal/model"
	"subgraphMonitor/internal/retry"
)

// DefaultURL is the hosted service index-node status endpoint.
const DefaultURL = "https://api.thegraph.com/index-node/graphql"

// ErrEndpointUnavailable covers every failure to obtain a usable status from
// the index node. It is fatal for the whole run.
var ErrEndpointUnavailable = errors.New("status endpoint unavailable")

const maxResponseBytes = 4 << 20

// Config holds status client settings.
type Config struct {
	URL        string
	Timeout    time.Duration
	Retry      retry.Policy
	HTTPClient *http.Client
}

// Client queries subgraph indexing statuses from an index node.
type Client struct {
	url        string
	timeout    time.Duration
	retry      retry.Policy
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a status client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		url:        url,
		timeout:    cfg.Timeout,
		retry:      cfg.Retry,
		httpClient: httpClient,
		logger:     logger,
	}
}

// FetchStatus returns the indexing status of one version of a subgraph, or
// nil when that version does not exist.
func (c *Client) FetchStatus(ctx context.Context, subgraph string, version model.Version) (*model.VersionStatus, error) {
	field, err := queryField(version)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(buildRequest(field, subgraph))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var body []byte
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		body, err = c.post(ctx, payload)
		if err != nil {
			c.logger.Warn("status request failed",
				zap.String("subgraph", subgraph),
				zap.String("version", string(version)),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEndpointUnavailable, err)
	}

	status, err := parseResponse(body, field)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrEndpointUnavailable, subgraph, version, err)
	}
	return status, nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post status query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
