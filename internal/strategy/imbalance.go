package strategy

import (
	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

// ImbalanceLabel classifies the top-10-level depth balance.
type ImbalanceLabel string

const (
	ImbalanceBalanced     ImbalanceLabel = "balanced"
	ImbalanceBuyDominant  ImbalanceLabel = "buy_dominant"
	ImbalanceSellDominant ImbalanceLabel = "sell_dominant"
)

const depthLevels = 10
const dominanceRatio = 3
const extremeRatio = 6

// depthImbalance sums the first depthLevels of each side and labels
// the result. Neither side "dominates" unless it out-sizes the other
// by at least dominanceRatio.
func depthImbalance(depth domain.DepthSnapshot) (buySum, sellSum decimal.Decimal, label ImbalanceLabel) {
	buySum = domain.SumSizes(depth.Bids, depthLevels)
	sellSum = domain.SumSizes(depth.Asks, depthLevels)

	label = ImbalanceBalanced
	if dominates(sellSum, buySum, dominanceRatio) {
		label = ImbalanceSellDominant
	} else if dominates(buySum, sellSum, dominanceRatio) {
		label = ImbalanceBuyDominant
	}
	return buySum, sellSum, label
}

// dominates reports whether a is at least ratio times b (b possibly zero).
func dominates(a, b decimal.Decimal, ratio int64) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.GreaterThanOrEqual(b.Mul(decimal.NewFromInt(ratio)))
}

// isExtremeAgainst reports whether the book is imbalanced by at least
// extremeRatio against a position's closing side, the trigger for a
// forced market close.
func isExtremeAgainst(closeSide domain.Side, buySum, sellSum decimal.Decimal) bool {
	// A long position closes with a SELL; it is squeezed by sellSum
	// dominance (sellers overwhelming the book it needs to sell into).
	if closeSide == domain.SideSell {
		return dominates(sellSum, buySum, extremeRatio)
	}
	return dominates(buySum, sellSum, extremeRatio)
}
