package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"crypto_go/internal/domain"
)

// decimalOrZero parses an optional decimal config field, treating an
// empty string as zero rather than an error.
type decimalOrZero struct {
	d   decimal.Decimal
	err error
}

func (v *decimalOrZero) set(s string) {
	if s == "" {
		v.d = decimal.Zero
		return
	}
	v.d, v.err = decimal.NewFromString(s)
}

// Config carries the ambient process configuration: identity, trading
// mode, venue connection details, logging and the strategy parameters
// of the order-lifecycle core. Secrets are overridden from environment
// variables after the YAML load (see overrideWithEnv).
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode string `yaml:"mode"` // paper | demo | real
	} `yaml:"trading"`

	Venue struct {
		WSURL     string `yaml:"ws_url"`
		RestURL   string `yaml:"rest_url"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"venue"`

	Strategy struct {
		Symbol              string  `yaml:"symbol"`
		Kind                string  `yaml:"kind"` // maker | offset_maker
		RefreshIntervalMs   int64   `yaml:"refresh_interval_ms"`
		PriceTick           string  `yaml:"price_tick"`
		QtyStep             string  `yaml:"qty_step"`
		TradeAmount         string  `yaml:"trade_amount"`
		VolumeBoost         string  `yaml:"volume_boost"`
		BidOffset           string  `yaml:"bid_offset"`
		AskOffset           string  `yaml:"ask_offset"`
		LossLimit           string  `yaml:"loss_limit"`
		MaxCloseSlippagePct string  `yaml:"max_close_slippage_pct"`
		StrictLimitOnly     bool    `yaml:"strict_limit_only"`
		RepriceDwellMs      int64   `yaml:"reprice_dwell_ms"`
		MinRepriceTicks     int64   `yaml:"min_reprice_ticks"`
		MaxLogEntries       int     `yaml:"max_log_entries"`
	} `yaml:"strategy"`

	Logging struct {
		Level      string `yaml:"level"`
		FilePath   string `yaml:"file_path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"logging"`

	Storage struct {
		TradeLogPath  string `yaml:"trade_log_path"`
		SnapshotPath  string `yaml:"snapshot_path"`
		SnapshotEvery int64  `yaml:"snapshot_every_ms"`
	} `yaml:"storage"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
}

// LoadConfig reads and parses a YAML config file, applies environment
// overrides for secrets, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Strategy.Symbol == "" {
		return fmt.Errorf("strategy.symbol is required")
	}
	if c.Strategy.RefreshIntervalMs <= 0 {
		return fmt.Errorf("strategy.refresh_interval_ms must be positive")
	}
	if c.Strategy.PriceTick == "" || c.Strategy.QtyStep == "" {
		return fmt.Errorf("strategy.price_tick and strategy.qty_step are required")
	}
	switch c.Trading.Mode {
	case "paper", "demo", "real":
	default:
		return fmt.Errorf("trading.mode must be one of paper|demo|real, got %q", c.Trading.Mode)
	}
	return nil
}

// StrategyConfig converts the YAML-shaped strategy section into the
// decimal-typed domain.StrategyConfig the engine consumes.
func (c *Config) StrategyConfig() (domain.StrategyConfig, error) {
	parse := func(s string) (d decimalOrZero) {
		d.set(s)
		return
	}

	priceTick := parse(c.Strategy.PriceTick)
	qtyStep := parse(c.Strategy.QtyStep)
	tradeAmount := parse(c.Strategy.TradeAmount)
	volumeBoost := parse(c.Strategy.VolumeBoost)
	bidOffset := parse(c.Strategy.BidOffset)
	askOffset := parse(c.Strategy.AskOffset)
	lossLimit := parse(c.Strategy.LossLimit)
	maxSlip := parse(c.Strategy.MaxCloseSlippagePct)

	if priceTick.err != nil || qtyStep.err != nil || tradeAmount.err != nil {
		return domain.StrategyConfig{}, fmt.Errorf("strategy numeric field parse error")
	}

	kind := domain.StrategyMaker
	if c.Strategy.Kind == string(domain.StrategyOffsetMaker) {
		kind = domain.StrategyOffsetMaker
	}

	sc := domain.StrategyConfig{
		Symbol:              c.Strategy.Symbol,
		Strategy:            kind,
		RefreshMs:           c.Strategy.RefreshIntervalMs,
		PriceTick:           priceTick.d,
		QtyStep:             qtyStep.d,
		TradeAmount:         tradeAmount.d,
		VolumeBoost:         volumeBoost.d,
		BidOffset:           bidOffset.d,
		AskOffset:           askOffset.d,
		LossLimit:           lossLimit.d,
		MaxCloseSlippagePct: maxSlip.d,
		StrictLimitOnly:     c.Strategy.StrictLimitOnly,
		RepriceDwellMs:      c.Strategy.RepriceDwellMs,
		MinRepriceTicks:     c.Strategy.MinRepriceTicks,
		MaxLogEntries:       c.Strategy.MaxLogEntries,
	}
	return sc.Defaults(), nil
}

// overrideWithEnv lets deployment secrets win over anything checked
// into the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.Venue.SecretKey != "" {
		fmt.Println("WARNING: venue secret key present in config file; prefer CRYPTO_VENUE_SECRET")
	}
	if key := os.Getenv("CRYPTO_VENUE_KEY"); key != "" {
		cfg.Venue.AccessKey = key
	}
	if secret := os.Getenv("CRYPTO_VENUE_SECRET"); secret != "" {
		cfg.Venue.SecretKey = secret
	}
}
