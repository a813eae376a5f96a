package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "snapshot_test")
	defer os.RemoveAll(dir)

	sm := NewSnapshotManager(dir)

	pos := domain.Position{Symbol: "BTCUSDT", Amt: decimal.NewFromFloat(0.5)}
	snap := CreateSnapshot(100, "BTCUSDT", pos, nil, "1.25")

	if err := sm.Save(snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if loaded.Seq != 100 {
		t.Errorf("expected seq 100, got %d", loaded.Seq)
	}
	if !loaded.Position.Amt.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("position mismatch: %+v", loaded.Position)
	}
}

func TestSnapshot_LoadLatest_MultipleSnapshots(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "snapshot_test2")
	defer os.RemoveAll(dir)

	sm := NewSnapshotManager(dir)

	for _, seq := range []uint64{10, 50, 30} {
		snap := CreateSnapshot(seq, "BTCUSDT", domain.Position{}, nil, "0")
		if err := sm.Save(snap); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Seq != 50 {
		t.Errorf("expected latest seq 50, got %d", loaded.Seq)
	}
}

func TestSnapshot_LoadLatest_NoSnapshots(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "snapshot_empty")
	defer os.RemoveAll(dir)

	sm := NewSnapshotManager(dir)

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for empty dir, got %v", loaded)
	}
}

func TestSnapshot_Cleanup(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "snapshot_cleanup")
	defer os.RemoveAll(dir)

	sm := NewSnapshotManager(dir)

	for seq := uint64(1); seq <= 5; seq++ {
		snap := CreateSnapshot(seq, "BTCUSDT", domain.Position{}, nil, "0")
		if err := sm.Save(snap); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	if err := sm.Cleanup(2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected 2 snapshots after cleanup, got %d", len(entries))
	}

	loaded, _ := sm.LoadLatest()
	if loaded.Seq != 5 {
		t.Errorf("expected seq 5 to remain, got %d", loaded.Seq)
	}
}
