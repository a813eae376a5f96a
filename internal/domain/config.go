package domain

import "github.com/shopspring/decimal"

// StrategyKind selects the desired-quote derivation the engine runs.
type StrategyKind string

const (
	StrategyMaker       StrategyKind = "maker"
	StrategyOffsetMaker StrategyKind = "offset_maker"
)

// StrategyConfig carries the recognized configuration options of the
// order-lifecycle core (spec's Configuration surface). It is separate
// from the ambient process configuration (network endpoints, logging,
// trading mode) held by infra.Config.
type StrategyConfig struct {
	Symbol       string
	Strategy     StrategyKind
	RefreshMs    int64
	PriceTick    decimal.Decimal
	QtyStep      decimal.Decimal
	TradeAmount  decimal.Decimal
	VolumeBoost  decimal.Decimal

	BidOffset decimal.Decimal
	AskOffset decimal.Decimal

	LossLimit           decimal.Decimal
	MaxCloseSlippagePct decimal.Decimal
	StrictLimitOnly     bool

	RepriceDwellMs   int64
	MinRepriceTicks  int64
	MaxLogEntries    int
}

// Defaults fills the zero-valued dwell/reprice fields per spec's
// defaults: repriceDwellMs = max(1500ms, 3x refresh), minRepriceTicks=1.
func (c StrategyConfig) Defaults() StrategyConfig {
	if c.RepriceDwellMs == 0 {
		dwell := c.RefreshMs * 3
		if dwell < 1500 {
			dwell = 1500
		}
		c.RepriceDwellMs = dwell
	}
	if c.MinRepriceTicks == 0 {
		c.MinRepriceTicks = 1
	}
	if c.VolumeBoost.IsZero() {
		c.VolumeBoost = decimal.NewFromInt(1)
	}
	if c.MaxLogEntries == 0 {
		c.MaxLogEntries = 500
	}
	return c
}
