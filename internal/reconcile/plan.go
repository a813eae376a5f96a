// Package reconcile implements the Plan Reconciler and the
// Orphan-Position Reconciler: pure, in-memory matching over the
// current book state, with no I/O of their own.
package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
	"crypto_go/pkg/quant"
)

// planKey is the matching key the reconciler groups orders by:
// (side, roundToTick(price), reduceOnly).
type planKey struct {
	side       domain.Side
	tickPrice  int64
	reduceOnly bool
}

// MakeOrderPlan computes (toCancel, toPlace) between the current open
// orders and the desired orders. currentOpen must already be
// pre-filtered by the caller to exclude terminal statuses and
// stop-like orders.
//
// Matching: each desired key greedily consumes at most one open order
// whose amount is within qtyStep of the desired amount. Unmatched
// opens become toCancel (oldest updateTime first); unmatched desireds
// become toPlace (input order preserved).
func MakeOrderPlan(currentOpen []domain.OpenOrder, desired []domain.DesiredOrder, priceTick, qtyStep decimal.Decimal) domain.OrderPlan {
	available := make(map[planKey][]domain.OpenOrder, len(currentOpen))
	for _, o := range currentOpen {
		k := keyForOpen(o, priceTick)
		available[k] = append(available[k], o)
	}

	var toPlace []domain.DesiredOrder
	matched := make(map[string]bool, len(currentOpen))

	for _, d := range desired {
		k := keyForDesired(d, priceTick)
		bucket := available[k]
		idx := -1
		for i, o := range bucket {
			if matched[o.OrderID] {
				continue
			}
			if quant.SameWithinTolerance(o.OrigQty, d.Amount, qtyStep) {
				idx = i
				break
			}
		}
		if idx == -1 {
			toPlace = append(toPlace, d)
			continue
		}
		matched[bucket[idx].OrderID] = true
	}

	var toCancel []domain.OpenOrder
	for _, o := range currentOpen {
		if !matched[o.OrderID] {
			toCancel = append(toCancel, o)
		}
	}
	sort.SliceStable(toCancel, func(i, j int) bool {
		return toCancel[i].UpdateTime.Before(toCancel[j].UpdateTime)
	})

	return domain.OrderPlan{ToCancel: toCancel, ToPlace: toPlace}
}

func keyForOpen(o domain.OpenOrder, priceTick decimal.Decimal) planKey {
	return planKey{side: o.Side, tickPrice: quant.TickCount(o.Price, priceTick), reduceOnly: o.ReduceOnly}
}

func keyForDesired(d domain.DesiredOrder, priceTick decimal.Decimal) planKey {
	price := quant.ParseDecimal(d.Price)
	return planKey{side: d.Side, tickPrice: quant.TickCount(price, priceTick), reduceOnly: d.ReduceOnly}
}
