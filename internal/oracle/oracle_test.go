package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"subgraphMonitor/internal/retry"
)

type countingClient struct {
	height uint64
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (c *countingClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return c.height, c.err
}

func TestLatestHeightCachesPerNetwork(t *testing.T) {
	mainnet := &countingClient{height: 1005}
	matic := &countingClient{height: 42}
	o := New(map[string]HeadClient{"mainnet": mainnet, "matic": matic}, Options{}, zap.NewNop())

	for i := 0; i < 3; i++ {
		got, err := o.LatestHeight(context.Background(), "mainnet")
		if err != nil {
			t.Fatalf("latest height: %v", err)
		}
		if got != 1005 {
			t.Fatalf("height mismatch: %d", got)
		}
	}
	if _, err := o.LatestHeight(context.Background(), "MAINNET"); err != nil {
		t.Fatalf("latest height upper case: %v", err)
	}
	if _, err := o.LatestHeight(context.Background(), "matic"); err != nil {
		t.Fatalf("latest height matic: %v", err)
	}

	if n := mainnet.calls.Load(); n != 1 {
		t.Fatalf("expected 1 mainnet call, got %d", n)
	}
	if n := matic.calls.Load(); n != 1 {
		t.Fatalf("expected 1 matic call, got %d", n)
	}
}

func TestLatestHeightResetClearsCache(t *testing.T) {
	client := &countingClient{height: 7}
	o := New(map[string]HeadClient{"mainnet": client}, Options{}, nil)

	if _, err := o.LatestHeight(context.Background(), "mainnet"); err != nil {
		t.Fatalf("latest height: %v", err)
	}
	o.Reset()
	if _, err := o.LatestHeight(context.Background(), "mainnet"); err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if n := client.calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls across reset, got %d", n)
	}
}

func TestLatestHeightConcurrentCallersShareOneCall(t *testing.T) {
	client := &countingClient{height: 99, delay: 50 * time.Millisecond}
	o := New(map[string]HeadClient{"mainnet": client}, Options{}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := o.LatestHeight(context.Background(), "mainnet")
			if err == nil && got != 99 {
				err = errors.New("height mismatch")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent caller: %v", err)
		}
	}
	if n := client.calls.Load(); n != 1 {
		t.Fatalf("expected 1 call, got %d", n)
	}
}

func TestLatestHeightUnsupportedNetwork(t *testing.T) {
	o := New(map[string]HeadClient{"mainnet": &countingClient{}}, Options{}, nil)

	_, err := o.LatestHeight(context.Background(), "rinkeby")
	if !errors.Is(err, ErrUnsupportedNetwork) {
		t.Fatalf("expected ErrUnsupportedNetwork, got %v", err)
	}
	if errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("unsupported network must not be reported as unavailable")
	}
}

func TestLatestHeightUnavailableIsCached(t *testing.T) {
	client := &countingClient{err: errors.New("connection refused")}
	o := New(map[string]HeadClient{"mainnet": client}, Options{Retry: retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond}}, nil)

	for i := 0; i < 2; i++ {
		_, err := o.LatestHeight(context.Background(), "mainnet")
		if !errors.Is(err, ErrOracleUnavailable) {
			t.Fatalf("expected ErrOracleUnavailable, got %v", err)
		}
	}
	if n := client.calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts from a single fetch, got %d", n)
	}
}

func TestLatestHeightTimeout(t *testing.T) {
	client := &countingClient{height: 1, delay: time.Second}
	o := New(map[string]HeadClient{"mainnet": client}, Options{Timeout: 10 * time.Millisecond}, nil)

	_, err := o.LatestHeight(context.Background(), "mainnet")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable on timeout, got %v", err)
	}
}

type ethService struct{}

func (ethService) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(0x12a05f2)
}

func TestDialExpandsTokenAndQueriesHTTP(t *testing.T) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", ethService{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer srv.Stop()

	var seenPath atomic.Value
	httpSrv := httptest.NewServer(pathRecorder(&seenPath, srv))
	defer httpSrv.Close()

	o, err := Dial(context.Background(), map[string]string{
		"mainnet": httpSrv.URL + "/v3/" + TokenPlaceholder,
	}, "secret", Options{Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer o.Close()

	got, err := o.LatestHeight(context.Background(), "mainnet")
	if err != nil {
		t.Fatalf("latest height: %v", err)
	}
	if got != 0x12a05f2 {
		t.Fatalf("height mismatch: %d", got)
	}
	if path, _ := seenPath.Load().(string); !strings.HasSuffix(path, "/v3/secret") {
		t.Fatalf("token not expanded, path %q", path)
	}
}

func TestDialRequiresToken(t *testing.T) {
	_, err := Dial(context.Background(), map[string]string{
		"mainnet": "https://mainnet.infura.io/v3/" + TokenPlaceholder,
	}, "", Options{}, nil)
	if err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func pathRecorder(seen *atomic.Value, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
