package coordinator

import (
	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

// PlaceOrderRequest is the argument to Coordinator.PlaceOrder.
type PlaceOrderRequest struct {
	Slot           Slot
	Symbol         string
	Side           domain.Side
	Price          decimal.Decimal
	Qty            decimal.Decimal
	ReduceOnly     bool
	TimeInForce    domain.TimeInForce
	Precision      Precision
	Bid, Ask       decimal.Decimal
	MarkPrice      decimal.Decimal
	MaxSlippagePct decimal.Decimal
}

// PlaceStopRequest is the argument to Coordinator.PlaceStopLossOrder
// and PlacePreemptiveStopLimitOrder.
type PlaceStopRequest struct {
	Symbol    string
	Side      domain.Side
	StopPrice decimal.Decimal
	LastPrice decimal.Decimal
	Qty       decimal.Decimal
	Precision Precision
}

// MarketCloseRequest is the argument to Coordinator.MarketClose.
type MarketCloseRequest struct {
	Symbol         string
	Side           domain.Side
	Qty            decimal.Decimal
	ReferencePrice decimal.Decimal
	MarkPrice      decimal.Decimal
	MaxSlippagePct decimal.Decimal
	Precision      Precision
}
