// Package strategy derives the desired quotes for a tick from the
// current depth, position and configuration. It has no knowledge of
// coordinators, exchanges or reconciliation — it is a pure function
// of its inputs, called once per tick by the engine.
package strategy

import (
	"crypto_go/internal/domain"
)

// Inputs bundles everything a strategy needs to derive a tick's
// desired quotes.
type Inputs struct {
	Depth       domain.DepthSnapshot
	Position    domain.Position
	Config      domain.StrategyConfig
	EntriesOK   bool // false while a cooldown or the rate-limit controller blocks new entries
}

// Quotes is what a strategy hands back to the engine.
type Quotes struct {
	Desired      []domain.DesiredOrder
	Imbalance    ImbalanceLabel
	SkipBuySide  bool
	SkipSellSide bool
	ForceClose   bool // extreme imbalance against an open position: bypass quoting, market-close instead
}

// Strategy derives desired quotes for one tick.
type Strategy interface {
	DeriveDesired(in Inputs) Quotes
}
