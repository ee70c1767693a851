package storage

import (
	"bufio"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"subgraphMonitor/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "verdicts.jsonl")
	s := NewJsonlStorage(path)

	first := []model.Verdict{{
		Job:       "alpha",
		Version:   model.VersionCurrent,
		Reason:    "drift 20 >= 15",
		Network:   "mainnet",
		JobBlock:  big.NewInt(1000),
		HeadBlock: big.NewInt(1020),
		Drift:     big.NewInt(20),
	}}
	second := []model.Verdict{{Job: "alpha", Version: model.VersionPending, OK: true}}

	if err := s.PutVerdicts(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := s.PutVerdicts(nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if err := s.PutVerdicts(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["network"] != "mainnet" || lines[0]["ok"] != false {
		t.Fatalf("first line mismatch: %v", lines[0])
	}
	if lines[1]["version"] != "pending" || lines[1]["ok"] != true {
		t.Fatalf("second line mismatch: %v", lines[1])
	}
	if _, ok := lines[1]["head_block"]; ok {
		t.Fatalf("head_block should be omitted when unset")
	}
}
