package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the side of an order or book level.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType enumerates the order types the core reasons about. A venue
// may report other values through Type as a bare string; only these
// constants participate in stop-like detection and precision rules.
type OrderType string

const (
	OrderTypeLimit              OrderType = "LIMIT"
	OrderTypeMarket             OrderType = "MARKET"
	OrderTypeStopMarket         OrderType = "STOP_MARKET"
	OrderTypeStopLimit          OrderType = "STOP"
	OrderTypeTrailingStopMarket OrderType = "TRAILING_STOP_MARKET"
)

// OrderStatus enumerates the lifecycle states an exchange reports for
// an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether status is a resting-order terminal state:
// the order no longer occupies book space and will never transition
// further.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// TimeInForce mirrors the venue's TIF values the core cares about.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
)

// OpenOrder mirrors a single resting order as reported by
// ExchangePort.WatchOrders.
type OpenOrder struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Status        OrderStatus
	Price         decimal.Decimal
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	StopPrice     decimal.Decimal
	ReduceOnly    bool
	ClosePosition bool
	UpdateTime    time.Time
	Time          time.Time
}

// IsStopLike reports whether the order carries a stop trigger, per
// spec's invariant: stopPrice > 0 OR type contains "STOP".
func (o OpenOrder) IsStopLike() bool {
	return o.StopPrice.Sign() > 0 || strings.Contains(string(o.Type), "STOP")
}

// IsOpen reports whether the order still occupies book space.
func (o OpenOrder) IsOpen() bool {
	return !o.Status.IsTerminal()
}

// ProvidesProtection reports whether this resting order, on its own,
// counts as protection for a position on the given closing side:
// reduce-only, stop-like, or carrying a positive stop trigger.
func (o OpenOrder) ProvidesProtection(closeSide Side) bool {
	if o.Side != closeSide {
		return false
	}
	return o.ReduceOnly || o.IsStopLike() || o.StopPrice.Sign() > 0
}

// DesiredOrder is a quote the strategy wants resting on the book.
type DesiredOrder struct {
	Side       Side
	Price      string // pre-rounded to priceTick
	Amount     decimal.Decimal
	ReduceOnly bool
}

// OrderPlan is the diff the Plan Reconciler produces between current
// open orders and desired orders.
type OrderPlan struct {
	ToCancel []OpenOrder
	ToPlace  []DesiredOrder
}

// CreateOrderRequest is the argument to ExchangePort.CreateOrder.
type CreateOrderRequest struct {
	Symbol        string
	ClientOrderID string
	Side          Side
	Type          OrderType
	Price         string
	Quantity      string
	StopPrice     string
	ReduceOnly    bool
	ClosePosition bool
	TimeInForce   TimeInForce
}

// CancelOrderRequest is the argument to ExchangePort.CancelOrder.
type CancelOrderRequest struct {
	Symbol  string
	OrderID string
}
