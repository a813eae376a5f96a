package domain

import "github.com/shopspring/decimal"

// FlatEpsilon is the absolute position size below which a position is
// considered flat. Matches the tolerance the engine uses everywhere it
// asks "is there a position to protect".
var FlatEpsilon = decimal.New(1, -5) // 1e-5

// Position is a snapshot of one symbol's net exposure. Sign of Amt
// encodes direction: positive is long, negative is short.
type Position struct {
	Symbol            string
	Amt               decimal.Decimal
	EntryPrice        decimal.Decimal
	MarkPrice         *decimal.Decimal
	UnrealizedProfit  decimal.Decimal
}

// IsFlat reports whether the position's absolute size is below FlatEpsilon.
func (p Position) IsFlat() bool {
	return p.Amt.Abs().LessThan(FlatEpsilon)
}

// IsLong reports whether the position is a non-flat long.
func (p Position) IsLong() bool {
	return !p.IsFlat() && p.Amt.Sign() > 0
}

// IsShort reports whether the position is a non-flat short.
func (p Position) IsShort() bool {
	return !p.IsFlat() && p.Amt.Sign() < 0
}

// CloseSide returns the side an order must take to reduce this position:
// SELL for a long, BUY for a short. Callers must check IsFlat first.
func (p Position) CloseSide() Side {
	if p.Amt.Sign() > 0 {
		return SideSell
	}
	return SideBuy
}

// AccountSnapshot is delivered by ExchangePort.WatchAccount.
type AccountSnapshot struct {
	TotalUnrealizedProfit decimal.Decimal
	Positions             []Position
}

// PositionFor returns the position for symbol, or a flat zero-value
// position if the account snapshot carries none for it.
func (a AccountSnapshot) PositionFor(symbol string) Position {
	for _, p := range a.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return Position{Symbol: symbol}
}
