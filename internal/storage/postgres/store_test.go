package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"subgraphMonitor/internal/model"
)

func TestNumericRoundTrip(t *testing.T) {
	if numericText(nil) != nil {
		t.Fatalf("nil big.Int should map to NULL")
	}
	in, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	out := parseNumeric(numericText(in))
	if out == nil || out.Cmp(in) != 0 {
		t.Fatalf("numeric mismatch: %v", out)
	}
	bad := "1.5"
	if parseNumeric(&bad) != nil {
		t.Fatalf("fractional numeric should not parse")
	}
}

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

// Runs only when MONITOR_TEST_PG_DSN points at a scratch database.
func TestStoreVerdictHistory(t *testing.T) {
	dsn := os.Getenv("MONITOR_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MONITOR_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	job := "test/" + time.Now().Format("150405.000000")
	older := time.Now().UTC().Add(-time.Minute)
	newer := time.Now().UTC()
	err = store.InsertVerdicts(ctx, []model.Verdict{
		{Job: job, Version: model.VersionCurrent, OK: true, CheckedAt: older},
		{
			Job: job, Version: model.VersionCurrent, Reason: "drift 20 >= 15", Network: "mainnet",
			JobBlock: big.NewInt(1000), HeadBlock: big.NewInt(1020), CheckedAt: newer,
		},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	v, ok, err := store.LastVerdict(ctx, job, model.VersionCurrent)
	if err != nil || !ok {
		t.Fatalf("last verdict: %v %v", ok, err)
	}
	if v.OK || v.Network != "mainnet" || v.Drift == nil || v.Drift.Int64() != 20 {
		t.Fatalf("last verdict mismatch: %+v", v)
	}

	if _, ok, err := store.LastVerdict(ctx, job, model.VersionPending); err != nil || ok {
		t.Fatalf("expected no pending verdict: %v %v", ok, err)
	}
}
