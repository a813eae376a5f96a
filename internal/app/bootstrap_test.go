package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
	"crypto_go/internal/exchange/paper"
)

const testConfigYAML = `
app:
  name: test-app
  version: "0.0.0"

trading:
  mode: paper

venue:
  ws_url: ""
  rest_url: ""

strategy:
  symbol: BTCUSDT
  kind: maker
  refresh_interval_ms: 200
  price_tick: "0.1"
  qty_step: "0.001"
  trade_amount: "0.01"
  volume_boost: "1"
  bid_offset: "0"
  ask_offset: "0"
  loss_limit: "0"
  max_close_slippage_pct: "0.05"
  strict_limit_only: false
  reprice_dwell_ms: 500
  min_reprice_ticks: 1
  max_log_entries: 100

logging:
  level: info
  file_path: ""
  max_size_mb: 10
  max_backups: 3

storage:
  trade_log_path: ""
  snapshot_path: ""
  snapshot_every_ms: 1000

metrics:
  listen_addr: ""
`

func chdirTemp(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore Chdir: %v", err)
		}
	})
	return tmp
}

func writeTestConfig(t *testing.T, dir string) {
	t.Helper()
	writeConfigYAML(t, dir, testConfigYAML)
}

func writeConfigYAML(t *testing.T, dir, yamlCfg string) {
	t.Helper()
	configDir := filepath.Join(dir, "configs")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll configs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yamlCfg), 0644); err != nil {
		t.Fatalf("WriteFile config.yaml: %v", err)
	}
	// GetWorkspaceDir prefers a local "_workspace" directory over the OS
	// data dir; creating it here keeps the test fully contained in dir.
	if err := os.MkdirAll(filepath.Join(dir, "_workspace"), 0755); err != nil {
		t.Fatalf("MkdirAll _workspace: %v", err)
	}
}

func TestBootstrap_InitializePaperModeWiresEngineAgainstInMemoryExchange(t *testing.T) {
	dir := chdirTemp(t)
	writeTestConfig(t, dir)

	b := NewBootstrap()
	if err := b.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer b.Close()

	if b.Engine == nil {
		t.Fatal("expected non-nil Engine")
	}
	if b.Store == nil {
		t.Fatal("expected non-nil trade log store")
	}
	if b.Snapshot == nil {
		t.Fatal("expected non-nil snapshot manager")
	}
	if b.Config.Strategy.Symbol != "BTCUSDT" {
		t.Fatalf("expected symbol BTCUSDT, got %q", b.Config.Strategy.Symbol)
	}
}

func TestBootstrap_InitializeNonPaperModeRequiresSuppliedExchange(t *testing.T) {
	dir := chdirTemp(t)
	writeConfigYAML(t, dir, replaceMode(testConfigYAML, "real"))

	b := NewBootstrap()
	if err := b.Initialize(nil); err == nil {
		defer b.Close()
		t.Fatal("expected error when no exchange is supplied for a non-paper mode")
	}
}

func TestBootstrap_InitializeAcceptsSuppliedExchangeInRealMode(t *testing.T) {
	dir := chdirTemp(t)
	writeConfigYAML(t, dir, replaceMode(testConfigYAML, "real"))

	var ex domain.ExchangePort = paper.New("BTCUSDT", mustDecimal("10000"))
	b := NewBootstrap()
	if err := b.Initialize(ex); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer b.Close()

	if b.Engine == nil {
		t.Fatal("expected non-nil Engine")
	}
}

func replaceMode(yamlCfg, mode string) string {
	return strings.Replace(yamlCfg, "mode: paper", "mode: "+mode, 1)
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}
