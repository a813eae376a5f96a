package reconcile

import (
	"context"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

// Prices carries the top-of-book and last-trade prices the orphan
// reconciler needs to construct a close order.
type Prices struct {
	TopBid, TopAsk, LastPrice decimal.Decimal
}

// Placer is the minimal surface the orphan reconciler needs to place
// a protective order; internal/coordinator.Coordinator satisfies it.
type Placer interface {
	PlaceOrder(ctx context.Context, req PlaceOrderArgs) error
}

// PlaceOrderArgs is the argument shape Placer.PlaceOrder accepts,
// deliberately narrower than coordinator.PlaceOrderRequest so this
// package has no import-time dependency on the coordinator.
type PlaceOrderArgs struct {
	Symbol     string
	Side       domain.Side
	Price      decimal.Decimal
	Qty        decimal.Decimal
	ReduceOnly bool
	TIF        domain.TimeInForce
}

// Result is the outcome of ReconcileOrphanedPosition.
type Result struct {
	TookAction bool
}

// Opts carries the caller-provided policy knobs the reconciler needs.
type Opts struct {
	StrictLimitOnly bool
}

// ReconcileOrphanedPosition places a protective reduce-only limit
// order for symbol when the position lacks one, and does nothing
// otherwise. It never inspects StopPrice math beyond what
// OpenOrder.ProvidesProtection already encodes, and it never touches
// the exchange when protection already exists (idempotence).
func ReconcileOrphanedPosition(ctx context.Context, placer Placer, symbol string, position domain.Position, openOrders []domain.OpenOrder, prices Prices, opts Opts, ioc bool) (Result, error) {
	if position.IsFlat() {
		return Result{TookAction: false}, nil
	}

	closeSide := position.CloseSide()
	for _, o := range openOrders {
		if o.IsOpen() && o.ProvidesProtection(closeSide) {
			return Result{TookAction: false}, nil
		}
	}

	price := closePrice(closeSide, prices)
	if price.IsZero() {
		return Result{TookAction: false}, nil
	}

	tif := domain.TIFGTC
	if ioc || opts.StrictLimitOnly {
		tif = domain.TIFIOC
	}

	err := placer.PlaceOrder(ctx, PlaceOrderArgs{
		Symbol:     symbol,
		Side:       closeSide,
		Price:      price,
		Qty:        position.Amt.Abs(),
		ReduceOnly: true,
		TIF:        tif,
	})
	if err != nil {
		return Result{TookAction: false}, err
	}
	return Result{TookAction: true}, nil
}

func closePrice(side domain.Side, prices Prices) decimal.Decimal {
	switch side {
	case domain.SideSell:
		if !prices.TopAsk.IsZero() {
			return prices.TopAsk
		}
	case domain.SideBuy:
		if !prices.TopBid.IsZero() {
			return prices.TopBid
		}
	}
	return prices.LastPrice
}
