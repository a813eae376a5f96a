package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crypto_go/internal/coordinator"
	"crypto_go/internal/domain"
	"crypto_go/internal/engine"
	"crypto_go/internal/event"
	"crypto_go/internal/exchange/paper"
	"crypto_go/internal/infra"
	"crypto_go/internal/ratelimit"
	"crypto_go/internal/storage"
	"crypto_go/internal/strategy"

	"github.com/shopspring/decimal"
)

// Bootstrap orchestrates application startup: config, logging,
// storage, and the wired Strategy Engine ready to Run.
type Bootstrap struct {
	Config   *infra.Config
	Store    *storage.TradeLogStore
	Snapshot *storage.SnapshotManager
	Engine   *engine.Engine
	unlock   func()
}

// NewBootstrap creates an unstarted Bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, sets up logging and storage, and
// wires the Strategy Engine against either the in-memory paper
// exchange (trading.mode == "paper") or a live venue adapter supplied
// by the caller.
func (b *Bootstrap) Initialize(exchange domain.ExchangePort) error {
	event.Warmup()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	infra.PrintBanner(cfg)

	mode := strings.ToLower(cfg.Trading.Mode)

	if secretPath := filepath.Join("secrets", mode+".yaml"); fileExists(secretPath) {
		secrets, err := infra.LoadSecretConfig(secretPath)
		if err != nil {
			return fmt.Errorf("load secret config: %w", err)
		}
		if cfg.Venue.AccessKey == "" {
			cfg.Venue.AccessKey = secrets.Venue.AccessKey
		}
		if cfg.Venue.SecretKey == "" {
			cfg.Venue.SecretKey = secrets.Venue.SecretKey
		}
	}

	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := cfg.Storage.TradeLogPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "trades.db")
	}
	store, err := storage.NewTradeLogStore(dbPath)
	if err != nil {
		return fmt.Errorf("trade log store: %w", err)
	}
	b.Store = store
	slog.Info("trade log store ready", slog.String("path", dbPath), slog.String("mode", mode))

	snapDir := cfg.Storage.SnapshotPath
	if snapDir == "" {
		snapDir = filepath.Join(dataDir, "snapshots")
	}
	if err := infra.EnsureDir(snapDir); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	b.Snapshot = storage.NewSnapshotManager(snapDir)

	stratCfg, err := cfg.StrategyConfig()
	if err != nil {
		return fmt.Errorf("strategy config: %w", err)
	}

	if exchange == nil {
		if mode != "paper" {
			return fmt.Errorf("no exchange adapter supplied for trading.mode %q", cfg.Trading.Mode)
		}
		exchange = paper.New(stratCfg.Symbol, decimal.New(10000, 0))
		slog.Info("using in-memory paper exchange", slog.String("symbol", stratCfg.Symbol))
	}

	refreshInterval := time.Duration(stratCfg.RefreshMs) * time.Millisecond
	coord := coordinator.New(exchange, refreshInterval, logger)
	rl := ratelimit.New(refreshInterval, logger)

	var strat strategy.Strategy
	switch stratCfg.Strategy {
	case domain.StrategyOffsetMaker:
		strat = strategy.NewOffsetMaker()
	default:
		strat = strategy.NewMaker()
	}

	b.Engine = engine.New(exchange, stratCfg, coord, rl, strat, store, logger)

	return nil
}

// Close releases resources acquired during Initialize.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		_ = b.Store.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
