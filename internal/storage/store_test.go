package storage

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestTradeLogStore_RecordAndRecent(t *testing.T) {
	dbPath := "test_trades.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")

	store, err := NewTradeLogStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	rec1 := TradeRecord{Seq: 1, Symbol: "BTCUSDT", Side: "BUY", Event: "PLACED", OrderID: "1", ClientOrderID: "c1", Price: "50000", Qty: "0.01", Ts: time.Unix(0, 1000)}
	rec2 := TradeRecord{Seq: 2, Symbol: "BTCUSDT", Side: "SELL", Event: "FILLED", OrderID: "2", ClientOrderID: "c2", Price: "50010", Qty: "0.01", ReduceOnly: true, Ts: time.Unix(0, 2000)}

	if err := store.RecordTrade(ctx, rec1); err != nil {
		t.Fatalf("record rec1: %v", err)
	}
	if err := store.RecordTrade(ctx, rec2); err != nil {
		t.Fatalf("record rec2: %v", err)
	}

	recent, err := store.RecentTrades(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(recent))
	}
	// newest first
	if recent[0].Event != "FILLED" || !recent[0].ReduceOnly {
		t.Errorf("unexpected newest record: %+v", recent[0])
	}
	if recent[1].Event != "PLACED" {
		t.Errorf("unexpected oldest record: %+v", recent[1])
	}
}

func TestTradeLogStore_Metadata(t *testing.T) {
	dbPath := "test_meta.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-wal")
	defer os.Remove(dbPath + "-shm")

	store, err := NewTradeLogStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	val, err := store.GetMetadata(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty string for missing key, got %q", val)
	}

	if err := store.UpsertMetadata(ctx, "startup_reset_done", "true", 1); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	val, err = store.GetMetadata(ctx, "startup_reset_done")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "true" {
		t.Errorf("expected 'true', got %q", val)
	}

	if err := store.UpsertMetadata(ctx, "startup_reset_done", "false", 2); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}
	val, _ = store.GetMetadata(ctx, "startup_reset_done")
	if val != "false" {
		t.Errorf("expected overwrite to 'false', got %q", val)
	}
}
