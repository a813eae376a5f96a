package engine

import (
	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
	"crypto_go/pkg/quant"
)

// calcStopLossPrice computes the protective stop trigger for a
// position closing on closeSide: lossLimit is a per-unit price
// distance from entry, subtracted for a long's SELL stop and added
// for a short's BUY stop.
func calcStopLossPrice(entry decimal.Decimal, closeSide domain.Side, lossLimit decimal.Decimal) decimal.Decimal {
	if closeSide == domain.SideSell {
		return entry.Sub(lossLimit)
	}
	return entry.Add(lossLimit)
}

// isValidStopPrice enforces the direction constraint: a SELL stop must
// sit at or below lastPrice-tick, a BUY stop at or above lastPrice+tick,
// so the trigger can never fire against the current market immediately.
func isValidStopPrice(closeSide domain.Side, stopPrice, lastPrice, tick decimal.Decimal) bool {
	if lastPrice.IsZero() {
		return false
	}
	if closeSide == domain.SideSell {
		return stopPrice.LessThanOrEqual(lastPrice.Sub(tick))
	}
	return stopPrice.GreaterThanOrEqual(lastPrice.Add(tick))
}

// isTighter reports whether candidate protects more of the position's
// value than current: for a SELL stop (long), a higher trigger is
// tighter; for a BUY stop (short), a lower trigger is tighter.
func isTighter(closeSide domain.Side, candidate, current decimal.Decimal) bool {
	if closeSide == domain.SideSell {
		return candidate.GreaterThan(current)
	}
	return candidate.LessThan(current)
}

// findStopLike returns the first open, stop-like order protecting the
// closing side, or nil.
func findStopLike(orders []domain.OpenOrder, closeSide domain.Side) *domain.OpenOrder {
	for i := range orders {
		o := orders[i]
		if o.IsOpen() && o.Side == closeSide && o.IsStopLike() {
			return &orders[i]
		}
	}
	return nil
}

// findRestingEntry returns the first open, non-reduce-only, non-stop
// order on side, used for reprice suppression.
func findRestingEntry(orders []domain.OpenOrder, side domain.Side) *domain.OpenOrder {
	for i := range orders {
		o := orders[i]
		if o.IsOpen() && o.Side == side && !o.ReduceOnly && !o.IsStopLike() {
			return &orders[i]
		}
	}
	return nil
}

// shouldStopLoss reports whether the position's per-unit loss has
// reached lossLimit, using the same side-aware reference price as
// snapshot PnL reporting.
func (e *Engine) shouldStopLoss(pos domain.Position, bid, ask decimal.Decimal) bool {
	if pos.IsFlat() || e.cfg.LossLimit.IsZero() {
		return false
	}
	pnl := e.unitPnL(pos, bid, ask)
	return pnl.LessThanOrEqual(e.cfg.LossLimit.Neg())
}

// quoteSideReference returns the passive resting-quote price for
// closeSide: SELL quotes at the ask, BUY at the bid. Used wherever the
// price only needs to track the current quote, not cross it (e.g. the
// protective stop's lastPrice fallback and its Offset-Maker repricing).
func quoteSideReference(closeSide domain.Side, bid, ask decimal.Decimal) decimal.Decimal {
	if closeSide == domain.SideSell {
		return ask
	}
	return bid
}

// aggressiveCrossingPrice returns the price that immediately crosses
// the book for closeSide: SELL crosses at the bid, BUY at the ask.
// Used for reduce-only TIF=IOC emergency closes, which must fill this
// tick rather than rest.
func aggressiveCrossingPrice(closeSide domain.Side, bid, ask decimal.Decimal) decimal.Decimal {
	if closeSide == domain.SideSell {
		return bid
	}
	return ask
}

// tickDelta returns the absolute tick-count distance between two
// prices.
func tickDelta(a, b, tick decimal.Decimal) int64 {
	d := quant.TickCount(a, tick) - quant.TickCount(b, tick)
	if d < 0 {
		return -d
	}
	return d
}
