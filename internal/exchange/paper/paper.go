// Package paper implements domain.ExchangePort entirely in memory, for
// running the engine against simulated fills instead of a live venue.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

// Fill records one simulated execution, kept for inspection in tests
// and for the trade log.
type Fill struct {
	OrderID string
	Symbol  string
	Side    domain.Side
	Price   decimal.Decimal
	Qty     decimal.Decimal
	Ts      time.Time
}

// Exchange is an in-memory single-symbol futures venue: it fills MARKET
// orders immediately against the last known ticker price, rests LIMIT
// orders until the book crosses them on placement or a depth update, and
// maintains one net position with average-entry accounting.
type Exchange struct {
	mu sync.Mutex

	symbol         string
	takerFeeRate   decimal.Decimal
	insufficientAt decimal.Decimal // order notional above which CreateOrder returns InsufficientBalanceError (zero disables)

	balance  decimal.Decimal
	position domain.Position
	open     map[string]domain.OpenOrder
	fills    []Fill
	nextID   int

	depth  domain.DepthSnapshot
	ticker domain.TickerSnapshot

	accountSubs []func(domain.AccountSnapshot)
	ordersSubs  []func([]domain.OpenOrder)
	depthSubs   []func(domain.DepthSnapshot)
	tickerSubs  []func(domain.TickerSnapshot)
}

// New creates a paper exchange seeded with startingBalance quote-currency
// units and a flat position on symbol.
func New(symbol string, startingBalance decimal.Decimal) *Exchange {
	return &Exchange{
		symbol:   symbol,
		balance:  startingBalance,
		position: domain.Position{Symbol: symbol},
		open:     make(map[string]domain.OpenOrder),
	}
}

// The Watch* methods keep cb registered for the Exchange's lifetime;
// the Unsubscribe they return is a no-op.
func (e *Exchange) WatchAccount(cb func(domain.AccountSnapshot)) domain.Unsubscribe {
	e.mu.Lock()
	e.accountSubs = append(e.accountSubs, cb)
	e.mu.Unlock()
	cb(e.accountSnapshotLocked())
	return func() {}
}

func (e *Exchange) WatchOrders(cb func([]domain.OpenOrder)) domain.Unsubscribe {
	e.mu.Lock()
	e.ordersSubs = append(e.ordersSubs, cb)
	e.mu.Unlock()
	cb(e.openOrdersLocked())
	return func() {}
}

func (e *Exchange) WatchDepth(symbol string, cb func(domain.DepthSnapshot)) domain.Unsubscribe {
	e.mu.Lock()
	e.depthSubs = append(e.depthSubs, cb)
	e.mu.Unlock()
	return func() {}
}

func (e *Exchange) WatchTicker(symbol string, cb func(domain.TickerSnapshot)) domain.Unsubscribe {
	e.mu.Lock()
	e.tickerSubs = append(e.tickerSubs, cb)
	e.mu.Unlock()
	return func() {}
}

func (e *Exchange) SupportsTrailingStops() bool { return false }

// PushDepth feeds a new order book into the exchange, notifying
// subscribers and matching any resting limit orders it crosses.
func (e *Exchange) PushDepth(depth domain.DepthSnapshot) {
	e.mu.Lock()
	e.depth = depth
	fills := e.matchRestingLocked()
	subs := append([]func(domain.DepthSnapshot){}, e.depthSubs...)
	e.mu.Unlock()

	for _, cb := range subs {
		cb(depth)
	}
	e.notifyFills(fills)
}

// PushTicker feeds a new last-trade price, notifying subscribers.
func (e *Exchange) PushTicker(t domain.TickerSnapshot) {
	e.mu.Lock()
	e.ticker = t
	e.updateUnrealizedLocked()
	subs := append([]func(domain.TickerSnapshot){}, e.tickerSubs...)
	e.mu.Unlock()

	for _, cb := range subs {
		cb(t)
	}
}

func (e *Exchange) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.OpenOrder, error) {
	e.mu.Lock()

	price, err := decimal.NewFromString(req.Price)
	if err != nil && req.Type != domain.OrderTypeMarket {
		e.mu.Unlock()
		return domain.OpenOrder{}, fmt.Errorf("paper: invalid price %q: %w", req.Price, err)
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		e.mu.Unlock()
		return domain.OpenOrder{}, fmt.Errorf("paper: invalid quantity %q: %w", req.Quantity, err)
	}
	stopPrice, _ := decimal.NewFromString(req.StopPrice)

	notional := qty.Mul(e.referencePriceLocked(price))
	if !e.insufficientAt.IsZero() && notional.GreaterThan(e.insufficientAt) {
		e.mu.Unlock()
		return domain.OpenOrder{}, &domain.InsufficientBalanceError{Symbol: req.Symbol, Detail: "paper balance exhausted"}
	}

	e.nextID++
	order := domain.OpenOrder{
		OrderID:       fmt.Sprintf("paper-%d", e.nextID),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        domain.StatusNew,
		Price:         price,
		OrigQty:       qty,
		StopPrice:     stopPrice,
		ReduceOnly:    req.ReduceOnly,
		ClosePosition: req.ClosePosition,
		UpdateTime:    time.Now(),
		Time:          time.Now(),
	}

	if req.Type == domain.OrderTypeMarket {
		fillPrice := e.referencePriceLocked(decimal.Zero)
		order.Status = domain.StatusFilled
		order.ExecutedQty = qty
		fill := e.applyFillLocked(order, fillPrice)
		e.mu.Unlock()
		e.notifyFills([]Fill{fill})
		return order, nil
	}

	e.open[order.OrderID] = order
	fills := e.matchRestingLocked()

	if req.TimeInForce == domain.TIFIOC {
		if resting, ok := e.open[order.OrderID]; ok {
			// Didn't cross the book this tick: IOC must not rest, cancel it.
			delete(e.open, order.OrderID)
			order = resting
			order.Status = domain.StatusCanceled
			order.UpdateTime = time.Now()
		} else {
			order.Status = domain.StatusFilled
			order.ExecutedQty = order.OrigQty
		}
	}
	e.mu.Unlock()

	e.notifyOrders()
	e.notifyFills(fills)
	return order, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, req domain.CancelOrderRequest) error {
	e.mu.Lock()
	order, ok := e.open[req.OrderID]
	if !ok {
		e.mu.Unlock()
		return &domain.UnknownOrderError{OrderID: req.OrderID}
	}
	order.Status = domain.StatusCanceled
	order.UpdateTime = time.Now()
	delete(e.open, req.OrderID)
	e.mu.Unlock()

	e.notifyOrders()
	return nil
}

func (e *Exchange) CancelAllOrders(ctx context.Context, symbol string) error {
	e.mu.Lock()
	for id, o := range e.open {
		if o.Symbol == symbol {
			delete(e.open, id)
		}
	}
	e.mu.Unlock()

	e.notifyOrders()
	return nil
}

// matchRestingLocked fills any resting limit order the current book
// crosses: a BUY fills when its price is at or above the top ask, a
// SELL fills when its price is at or below the top bid. Caller holds e.mu.
func (e *Exchange) matchRestingLocked() []Fill {
	bid, ask, ok := e.depth.TopOfBook()
	if !ok {
		return nil
	}

	var fills []Fill
	for id, o := range e.open {
		if o.Symbol != e.symbol {
			continue
		}
		var crosses bool
		var fillPrice decimal.Decimal
		switch o.Side {
		case domain.SideBuy:
			crosses = o.Price.GreaterThanOrEqual(ask)
			fillPrice = ask
		case domain.SideSell:
			crosses = o.Price.LessThanOrEqual(bid)
			fillPrice = bid
		}
		if !crosses {
			continue
		}
		o.Status = domain.StatusFilled
		o.ExecutedQty = o.OrigQty
		delete(e.open, id)
		fills = append(fills, e.applyFillLocked(o, fillPrice))
	}
	return fills
}

// applyFillLocked updates position/entry-price/balance for a fill and
// records it. Caller holds e.mu.
func (e *Exchange) applyFillLocked(o domain.OpenOrder, price decimal.Decimal) Fill {
	signedQty := o.OrigQty
	if o.Side == domain.SideSell {
		signedQty = signedQty.Neg()
	}

	pos := e.position
	newAmt := pos.Amt.Add(signedQty)

	switch {
	case pos.Amt.IsZero() || pos.Amt.Sign() == newAmt.Sign() || newAmt.IsZero():
		if pos.Amt.IsZero() {
			pos.EntryPrice = price
		} else if newAmt.Abs().GreaterThan(pos.Amt.Abs()) {
			// adding to the same side: weighted-average entry
			totalAbs := pos.Amt.Abs().Add(o.OrigQty)
			weighted := pos.EntryPrice.Mul(pos.Amt.Abs()).Add(price.Mul(o.OrigQty))
			pos.EntryPrice = weighted.Div(totalAbs)
		} else if newAmt.IsZero() {
			// fully closed
			realized := price.Sub(pos.EntryPrice).Mul(pos.Amt)
			e.balance = e.balance.Add(realized)
			pos.EntryPrice = decimal.Zero
		} else {
			// partially reduced: realize on the closed quantity, entry unchanged
			realized := price.Sub(pos.EntryPrice).Mul(signedQty.Neg())
			e.balance = e.balance.Add(realized)
		}
	default:
		// reduced but flipped side: realize on the closed portion, open
		// remainder at the new fill price.
		closedQty := pos.Amt.Abs()
		if o.OrigQty.LessThan(closedQty) {
			closedQty = o.OrigQty
		}
		closedSigned := closedQty
		if pos.Amt.Sign() < 0 {
			closedSigned = closedSigned.Neg()
		}
		realized := price.Sub(pos.EntryPrice).Mul(closedSigned.Neg())
		e.balance = e.balance.Add(realized)
		pos.EntryPrice = price
	}
	pos.Amt = newAmt
	e.position = pos
	e.updateUnrealizedLocked()

	return Fill{OrderID: o.OrderID, Symbol: o.Symbol, Side: o.Side, Price: price, Qty: o.OrigQty, Ts: time.Now()}
}

func (e *Exchange) updateUnrealizedLocked() {
	if e.position.IsFlat() || e.ticker.LastPrice.IsZero() {
		e.position.UnrealizedProfit = decimal.Zero
		return
	}
	e.position.UnrealizedProfit = e.ticker.LastPrice.Sub(e.position.EntryPrice).Mul(e.position.Amt)
}

func (e *Exchange) referencePriceLocked(fallback decimal.Decimal) decimal.Decimal {
	if !e.ticker.LastPrice.IsZero() {
		return e.ticker.LastPrice
	}
	if bid, ask, ok := e.depth.TopOfBook(); ok {
		return bid.Add(ask).Div(decimal.NewFromInt(2))
	}
	return fallback
}

func (e *Exchange) accountSnapshotLocked() domain.AccountSnapshot {
	return domain.AccountSnapshot{
		TotalUnrealizedProfit: e.position.UnrealizedProfit,
		Positions:             []domain.Position{e.position},
	}
}

func (e *Exchange) openOrdersLocked() []domain.OpenOrder {
	out := make([]domain.OpenOrder, 0, len(e.open))
	for _, o := range e.open {
		out = append(out, o)
	}
	return out
}

func (e *Exchange) notifyOrders() {
	e.mu.Lock()
	orders := e.openOrdersLocked()
	subs := append([]func([]domain.OpenOrder){}, e.ordersSubs...)
	e.mu.Unlock()
	for _, cb := range subs {
		cb(orders)
	}
}

func (e *Exchange) notifyAccount() {
	e.mu.Lock()
	snap := e.accountSnapshotLocked()
	subs := append([]func(domain.AccountSnapshot){}, e.accountSubs...)
	e.mu.Unlock()
	for _, cb := range subs {
		cb(snap)
	}
}

func (e *Exchange) notifyFills(fills []Fill) {
	if len(fills) == 0 {
		return
	}
	e.mu.Lock()
	e.fills = append(e.fills, fills...)
	e.mu.Unlock()
	e.notifyAccount()
	e.notifyOrders()
}

// Fills returns every simulated execution so far, for test assertions.
func (e *Exchange) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

// Balance returns the realized quote-currency balance.
func (e *Exchange) Balance() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// SetInsufficientBalanceThreshold makes CreateOrder reject any order
// whose notional exceeds threshold, simulating a margin shortfall. Zero
// (the default) disables the check.
func (e *Exchange) SetInsufficientBalanceThreshold(threshold decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insufficientAt = threshold
}
