package domain

import "github.com/shopspring/decimal"

// Level is a single price/quantity level of a depth book.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// DepthSnapshot is delivered by ExchangePort.WatchDepth. Bids are
// sorted best-first (descending price); asks best-first (ascending
// price). The port guarantees index 0 of each side is valid whenever
// the snapshot is non-empty.
type DepthSnapshot struct {
	Bids []Level
	Asks []Level
}

// TopOfBook returns the best bid and best ask, and whether both sides
// were present.
func (d DepthSnapshot) TopOfBook() (bid, ask decimal.Decimal, ok bool) {
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return d.Bids[0].Price, d.Asks[0].Price, true
}

// SumSizes sums the qty of the first n levels of side (or all of them
// if fewer than n exist). Used for the top-10 depth-imbalance measure.
func SumSizes(levels []Level, n int) decimal.Decimal {
	sum := decimal.Zero
	for i, lvl := range levels {
		if i >= n {
			break
		}
		sum = sum.Add(lvl.Qty)
	}
	return sum
}

// TickerSnapshot is delivered by ExchangePort.WatchTicker.
type TickerSnapshot struct {
	LastPrice decimal.Decimal
}
