package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"crypto_go/internal/coordinator"
	"crypto_go/internal/reconcile"
)

// coordinatorPlacer adapts *coordinator.Coordinator to reconcile.Placer,
// the narrow interface the Orphan-Position Reconciler depends on.
type coordinatorPlacer struct {
	e *Engine
}

func (p coordinatorPlacer) PlaceOrder(ctx context.Context, req reconcile.PlaceOrderArgs) error {
	e := p.e
	bid, ask, _ := e.depth.TopOfBook()
	_, err := e.coord.PlaceOrder(ctx, coordinator.PlaceOrderRequest{
		Slot:           coordinator.SlotLimit,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Price:          req.Price,
		Qty:            req.Qty,
		ReduceOnly:     req.ReduceOnly,
		TimeInForce:    req.TIF,
		Precision:      e.precision(),
		Bid:            bid,
		Ask:            ask,
		MarkPrice:      e.markPrice(),
		MaxSlippagePct: e.cfg.MaxCloseSlippagePct,
	})
	return err
}

func (e *Engine) precision() coordinator.Precision {
	return coordinator.Precision{PriceTick: e.cfg.PriceTick, QtyStep: e.cfg.QtyStep}
}

func (e *Engine) markPrice() decimal.Decimal {
	pos := e.account.PositionFor(e.symbol)
	if pos.MarkPrice != nil {
		return *pos.MarkPrice
	}
	return decimal.Zero
}
