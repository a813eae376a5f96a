package strategy

import "crypto_go/internal/domain"

// OffsetMaker extends Maker with depth-imbalance-aware side
// suppression and a forced-exit signal when the book turns extreme
// against an open position.
type OffsetMaker struct{}

// NewOffsetMaker builds an OffsetMaker strategy.
func NewOffsetMaker() *OffsetMaker { return &OffsetMaker{} }

func (o *OffsetMaker) DeriveDesired(in Inputs) Quotes {
	buySum, sellSum, label := depthImbalance(in.Depth)

	if !in.Position.IsFlat() {
		if isExtremeAgainst(in.Position.CloseSide(), buySum, sellSum) {
			return Quotes{Imbalance: label, ForceClose: true}
		}
		q := deriveBase(in)
		q.Imbalance = label
		return q
	}

	q := deriveBase(in)
	q.Imbalance = label

	skipBuy := dominates(sellSum, buySum, dominanceRatio)
	skipSell := dominates(buySum, sellSum, dominanceRatio)
	q.SkipBuySide = skipBuy
	q.SkipSellSide = skipSell

	if len(q.Desired) == 0 {
		return q
	}
	filtered := q.Desired[:0]
	for _, d := range q.Desired {
		if d.Side == domain.SideBuy && skipBuy {
			continue
		}
		if d.Side == domain.SideSell && skipSell {
			continue
		}
		filtered = append(filtered, d)
	}
	q.Desired = filtered
	return q
}
