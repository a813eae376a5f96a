// Package quant holds the tick/step rounding and fixed-precision
// formatting helpers the order-lifecycle core needs at the exchange
// boundary. It has no dependency on any other internal package.
package quant

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Side identifies which side of the book a price rounds toward.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// RoundPriceToTick rounds price to the nearest multiple of tick,
// rounding book-favourably: BUY rounds down (never bid through the
// book), SELL rounds up (never offer through the book).
//
// tick must be strictly positive; a non-positive tick returns price
// unchanged.
func RoundPriceToTick(price decimal.Decimal, tick decimal.Decimal, side Side) decimal.Decimal {
	if tick.Sign() <= 0 {
		return price
	}
	ticks := price.Div(tick)
	var rounded decimal.Decimal
	switch side {
	case SideBuy:
		rounded = ticks.Floor()
	case SideSell:
		rounded = ticks.Ceil()
	}
	return rounded.Mul(tick)
}

// RoundQtyDownToStep rounds a quantity down to the nearest multiple of
// step. Orders may never be sized above what the caller asked for.
func RoundQtyDownToStep(qty decimal.Decimal, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}

// TickCount returns price expressed as an integer count of ticks,
// rounding to the nearest tick. Comparisons on tick counts avoid
// decimal rounding noise that can creep in across repeated arithmetic.
func TickCount(price decimal.Decimal, tick decimal.Decimal) int64 {
	if tick.Sign() <= 0 {
		return 0
	}
	return price.DivRound(tick, 0).IntPart()
}

// TickDecimals returns the number of decimal places in a tick size as
// written, i.e. its negated exponent, or 0 for a whole-number tick
// (e.g. tick=0.01 -> 2, tick=0.5 -> 1, tick=1 -> 0, tick=100 -> 0).
func TickDecimals(tick decimal.Decimal) int32 {
	if tick.Sign() <= 0 {
		return 0
	}
	exp := tick.Exponent()
	if exp >= 0 {
		return 0
	}
	// Exponent is the power of ten of the least significant digit of
	// the coefficient; for a clean tick like 0.01 (coefficient 1,
	// exponent -2) that is exactly the decimal place count.
	return -exp
}

// FormatPrice renders price as a fixed-point string with the precision
// implied by tick, the representation the ExchangePort boundary expects
// (spec's "prices are serialized to strings after rounding to tick").
func FormatPrice(price decimal.Decimal, tick decimal.Decimal) string {
	return price.StringFixed(TickDecimals(tick))
}

// FormatQty renders qty as a fixed-point string with the precision
// implied by step.
func FormatQty(qty decimal.Decimal, step decimal.Decimal) string {
	return qty.StringFixed(TickDecimals(step))
}

// ParseDecimal parses a numeric string from the exchange boundary,
// returning decimal.Zero on a malformed string rather than panicking —
// callers treat a zero price/qty as "missing" per spec's depth/ticker
// handling.
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SameWithinTolerance reports whether a and b differ by at most
// tolerance (inclusive), used for the Plan Reconciler's qty-step
// matching and the no-naked-position invariant's epsilon comparisons.
func SameWithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// FormatInt is a small helper so callers composing client order IDs
// don't reach for fmt for a single integer.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
