package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"subgraphMonitor/internal/retry"
)

var (
	// ErrUnsupportedNetwork is returned for a network with no configured endpoint.
	ErrUnsupportedNetwork = errors.New("unsupported network")
	// ErrOracleUnavailable is returned when the chain head could not be fetched.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// HeadClient returns the latest block number of one network.
type HeadClient interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Options controls oracle calls.
type Options struct {
	Timeout time.Duration
	Retry   retry.Policy
}

type head struct {
	height uint64
	err    error
}

// Oracle resolves chain head heights per network. Results, including
// failures, are cached until Reset so a network is queried at most once per
// evaluation run.
type Oracle struct {
	clients map[string]HeadClient
	opts    Options
	logger  *zap.Logger
	closers []func()

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]head
}

// New builds an Oracle over the given per-network clients.
func New(clients map[string]HeadClient, opts Options, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := make(map[string]HeadClient, len(clients))
	for network, client := range clients {
		normalized[normalizeNetwork(network)] = client
	}
	return &Oracle{
		clients: normalized,
		opts:    opts,
		logger:  logger,
		cache:   make(map[string]head),
	}
}

// Networks returns the configured network names.
func (o *Oracle) Networks() []string {
	out := make([]string, 0, len(o.clients))
	for network := range o.clients {
		out = append(out, network)
	}
	return out
}

// LatestHeight returns the chain head of network.
func (o *Oracle) LatestHeight(ctx context.Context, network string) (uint64, error) {
	key := normalizeNetwork(network)
	client, ok := o.clients[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
	}

	if cached, ok := o.cached(key); ok {
		return cached.height, cached.err
	}

	v, _, _ := o.group.Do(key, func() (interface{}, error) {
		if cached, ok := o.cached(key); ok {
			return cached, nil
		}
		res := o.fetch(ctx, key, client)
		o.mu.Lock()
		o.cache[key] = res
		o.mu.Unlock()
		return res, nil
	})

	res := v.(head)
	return res.height, res.err
}

// Reset drops all cached heights.
func (o *Oracle) Reset() {
	o.mu.Lock()
	o.cache = make(map[string]head)
	o.mu.Unlock()
}

// Close releases clients created by Dial.
func (o *Oracle) Close() {
	for _, closeFn := range o.closers {
		closeFn()
	}
	o.closers = nil
}

func (o *Oracle) cached(key string) (head, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	res, ok := o.cache[key]
	return res, ok
}

func (o *Oracle) fetch(ctx context.Context, network string, client HeadClient) head {
	start := time.Now()
	var height uint64
	err := retry.Do(ctx, o.opts.Retry, func(ctx context.Context) error {
		callCtx := ctx
		if o.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
			defer cancel()
		}

		var err error
		height, err = client.LatestBlockNumber(callCtx)
		if err != nil {
			o.logger.Debug("chain head fetch failed", zap.String("network", network), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return head{err: fmt.Errorf("%w: network %s: %w", ErrOracleUnavailable, network, err)}
	}

	o.logger.Debug("chain head fetched",
		zap.String("network", network),
		zap.Uint64("height", height),
		zap.Duration("took", time.Since(start)),
	)
	return head{height: height}
}

func normalizeNetwork(network string) string {
	return strings.ToLower(strings.TrimSpace(network))
}
