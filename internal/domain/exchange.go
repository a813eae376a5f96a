package domain

import "context"

// Unsubscribe stops a feed subscription. Calling it more than once is
// a no-op.
type Unsubscribe func()

// ExchangePort is the boundary between the order-lifecycle core and a
// venue. The core never talks to a venue directly; every place/cancel
// and every feed passes through this interface, so the same core runs
// unmodified against a live adapter or the in-memory paper exchange.
type ExchangePort interface {
	WatchAccount(cb func(AccountSnapshot)) Unsubscribe
	WatchOrders(cb func([]OpenOrder)) Unsubscribe
	WatchDepth(symbol string, cb func(DepthSnapshot)) Unsubscribe
	WatchTicker(symbol string, cb func(TickerSnapshot)) Unsubscribe

	CreateOrder(ctx context.Context, req CreateOrderRequest) (OpenOrder, error)
	CancelOrder(ctx context.Context, req CancelOrderRequest) error
	CancelAllOrders(ctx context.Context, symbol string) error

	SupportsTrailingStops() bool
}
