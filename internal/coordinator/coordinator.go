// Package coordinator implements the Order-Coordinator: it enforces
// at-most-one in-flight operation per logical order type, wraps every
// place/cancel with the price and precision guards, and maps venue
// failures onto the typed error taxonomy.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"crypto_go/internal/domain"
	"crypto_go/internal/infra"
)

// Precision carries the tick/step the coordinator rounds every order
// to, plus the stop-limit exactness flag spec calls exactLimitAtStop.
type Precision struct {
	PriceTick        decimal.Decimal
	QtyStep          decimal.Decimal
	ExactLimitAtStop bool
}

// Coordinator serializes place/cancel operations per slot and guards
// every call with slippage/precision checks and a circuit breaker.
type Coordinator struct {
	exchange domain.ExchangePort
	log      *slog.Logger

	mu    sync.Mutex
	slots [slotCount]slotState

	lockTimeout time.Duration
	callTimeout time.Duration

	breaker *infra.CircuitBreaker
	pacer   *rate.Limiter
}

// New builds a Coordinator. refreshInterval drives the slot lock
// timeout (4x refresh, per spec); each guarded exchange call is bounded
// by a fixed 5s callTimeout.
func New(exchange domain.ExchangePort, refreshInterval time.Duration, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	callTimeout := 5 * time.Second
	return &Coordinator{
		exchange:    exchange,
		log:         log,
		lockTimeout: 4 * refreshInterval,
		callTimeout: callTimeout,
		breaker: infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
			Name:             "exchange",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		}),
		pacer: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// tryLock acquires slot if free or expired. Returns false when another
// operation already holds it.
func (c *Coordinator) tryLock(slot Slot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.slots[slot]
	now := time.Now()
	if s.locked && !s.expired(now) {
		return false
	}
	if s.expired(now) {
		c.log.Warn("coordinator slot lock expired, releasing", slog.String("slot", slot.String()))
	}
	s.lock(now.Add(c.lockTimeout), "")
	return true
}

func (c *Coordinator) setPending(slot Slot, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[slot].pendingOrderID = orderID
}

// UnlockOperating releases slot unconditionally. Called when the
// engine observes the pending order terminal in the next orders
// snapshot, or when a call fails outright.
func (c *Coordinator) UnlockOperating(slot Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[slot].unlock()
}

// ObserveTerminal releases slot if its pending order id matches
// orderID. The caller passes an orderID it has already seen reach a
// terminal status (or drop out of the open orders), per spec's auto-release
// rule ("lock auto-releases ... when the pending id is observed
// terminal in the next orders snapshot").
func (c *Coordinator) ObserveTerminal(slot Slot, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.slots[slot]
	if s.pendingOrderID != "" && s.pendingOrderID == orderID {
		s.unlock()
	}
}

// PendingOrderID returns the order id currently occupying slot, or ""
// if the slot is free.
func (c *Coordinator) PendingOrderID(slot Slot) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[slot].pendingOrderID
}

// newClientOrderID generates a fresh client order id for a new
// placement.
func newClientOrderID() string {
	return "cg-" + uuid.NewString()
}

// callWithBreaker runs fn guarded by the circuit breaker and call
// timeout, translating a breaker rejection into a Transport error.
func (c *Coordinator) callWithBreaker(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if !c.breaker.Allow() {
		return &domain.TransportError{Op: op, Err: errors.New("circuit breaker open")}
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.breaker.RecordFailure()
			return &domain.TransportError{Op: op, Err: err}
		}
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			// Rate limits are a venue-policy signal, not a fault;
			// don't trip the breaker on them.
			return err
		}
		c.breaker.RecordFailure()
		return err
	}
	c.breaker.RecordSuccess()
	return nil
}

// PlaceOrder places a non-reduce-only or reduce-only limit order on
// slot, after rounding price/qty and running the price guard.
func (c *Coordinator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.OpenOrder, error) {
	if !c.tryLock(req.Slot) {
		return domain.OpenOrder{}, domain.ErrSlotLocked
	}
	ok := false
	defer func() {
		if !ok {
			c.UnlockOperating(req.Slot)
		}
	}()

	if err := checkEntrySanity(req.Side, req.Price, req.Bid, req.Ask); err != nil && !req.ReduceOnly {
		return domain.OpenOrder{}, err
	}
	if req.ReduceOnly && !req.MarkPrice.IsZero() {
		if err := checkSlippage(req.Price, req.MarkPrice, req.MaxSlippagePct); err != nil {
			return domain.OpenOrder{}, err
		}
	}

	priceDec := roundPrice(req.Price, req.Precision.PriceTick, req.Side)
	qtyDec := roundQtyDown(req.Qty, req.Precision.QtyStep)

	createReq := domain.CreateOrderRequest{
		Symbol:        req.Symbol,
		ClientOrderID: newClientOrderID(),
		Side:          req.Side,
		Type:          domain.OrderTypeLimit,
		Price:       formatPrice(priceDec, req.Precision.PriceTick),
		Quantity:    formatQty(qtyDec, req.Precision.QtyStep),
		ReduceOnly:  req.ReduceOnly,
		TimeInForce: req.TimeInForce,
	}

	var order domain.OpenOrder
	err := c.callWithBreaker(ctx, "placeOrder", func(ctx context.Context) error {
		o, err := c.exchange.CreateOrder(ctx, createReq)
		order = o
		return err
	})
	if err != nil {
		return domain.OpenOrder{}, mapError(err)
	}
	ok = true
	c.setPending(req.Slot, order.OrderID)
	return order, nil
}

// PlaceStopLossOrder places a protective stop on SlotStop. When
// Precision.ExactLimitAtStop is set, the limit price equals the stop
// trigger exactly.
func (c *Coordinator) PlaceStopLossOrder(ctx context.Context, req PlaceStopRequest) (domain.OpenOrder, error) {
	if !c.tryLock(SlotStop) {
		return domain.OpenOrder{}, domain.ErrSlotLocked
	}
	ok := false
	defer func() {
		if !ok {
			c.UnlockOperating(SlotStop)
		}
	}()

	stopDec := roundPrice(req.StopPrice, req.Precision.PriceTick, req.Side)
	limitDec := stopDec
	if !req.Precision.ExactLimitAtStop {
		limitDec = roundPrice(req.LastPrice, req.Precision.PriceTick, req.Side)
	}
	qtyDec := roundQtyDown(req.Qty, req.Precision.QtyStep)

	createReq := domain.CreateOrderRequest{
		Symbol:        req.Symbol,
		ClientOrderID: newClientOrderID(),
		Side:          req.Side,
		Type:          domain.OrderTypeStopLimit,
		Price:       formatPrice(limitDec, req.Precision.PriceTick),
		StopPrice:   formatPrice(stopDec, req.Precision.PriceTick),
		Quantity:    formatQty(qtyDec, req.Precision.QtyStep),
		ReduceOnly:  true,
		TimeInForce: domain.TIFGTC,
	}

	var order domain.OpenOrder
	err := c.callWithBreaker(ctx, "placeStopLossOrder", func(ctx context.Context) error {
		o, err := c.exchange.CreateOrder(ctx, createReq)
		order = o
		return err
	})
	if err != nil {
		return domain.OpenOrder{}, mapError(err)
	}
	ok = true
	c.setPending(SlotStop, order.OrderID)
	return order, nil
}

// PlacePreemptiveStopLimitOrder places a stop-limit immediately after
// a top-of-book entry, closing the protection gap described in
// spec's pre-emptive stop rule.
func (c *Coordinator) PlacePreemptiveStopLimitOrder(ctx context.Context, req PlaceStopRequest) (domain.OpenOrder, error) {
	return c.PlaceStopLossOrder(ctx, req)
}

// MarketClose issues a market order on the closing side, guarded by
// the slippage check against markPrice when available.
func (c *Coordinator) MarketClose(ctx context.Context, req MarketCloseRequest) (domain.OpenOrder, error) {
	if !c.tryLock(SlotLimit) {
		return domain.OpenOrder{}, domain.ErrSlotLocked
	}
	ok := false
	defer func() {
		if !ok {
			c.UnlockOperating(SlotLimit)
		}
	}()

	if !req.MarkPrice.IsZero() && !req.ReferencePrice.IsZero() {
		if err := checkSlippage(req.ReferencePrice, req.MarkPrice, req.MaxSlippagePct); err != nil {
			return domain.OpenOrder{}, err
		}
	}

	qtyDec := roundQtyDown(req.Qty, req.Precision.QtyStep)
	createReq := domain.CreateOrderRequest{
		Symbol:        req.Symbol,
		ClientOrderID: newClientOrderID(),
		Side:          req.Side,
		Type:          domain.OrderTypeMarket,
		Quantity:    formatQty(qtyDec, req.Precision.QtyStep),
		ReduceOnly:  true,
		TimeInForce: domain.TIFIOC,
	}

	var order domain.OpenOrder
	err := c.callWithBreaker(ctx, "marketClose", func(ctx context.Context) error {
		o, err := c.exchange.CreateOrder(ctx, createReq)
		order = o
		return err
	})
	if err != nil {
		return domain.OpenOrder{}, mapError(err)
	}
	ok = true
	c.setPending(SlotLimit, order.OrderID)
	return order, nil
}

// CancelOrder cancels orderID. UnknownOrder is treated as idempotent
// success, per spec's error propagation policy.
func (c *Coordinator) CancelOrder(ctx context.Context, symbol, orderID string) error {
	op := func() (struct{}, error) {
		err := c.exchange.CancelOrder(ctx, domain.CancelOrderRequest{Symbol: symbol, OrderID: orderID})
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3))
	if err != nil {
		var unknown *domain.UnknownOrderError
		if errors.As(err, &unknown) {
			c.log.Info("cancel saw unknown order, treating as already cancelled", slog.String("order_id", orderID))
			return nil
		}
		return mapError(err)
	}
	return nil
}

// CancelAllOrders cancels every resting order for symbol, used at
// engine startup-reset.
func (c *Coordinator) CancelAllOrders(ctx context.Context, symbol string) error {
	err := c.exchange.CancelAllOrders(ctx, symbol)
	if err != nil {
		var unknown *domain.UnknownOrderError
		if errors.As(err, &unknown) {
			return nil
		}
		return mapError(err)
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var unknown *domain.UnknownOrderError
	var insufficient *domain.InsufficientBalanceError
	var rateLimit *domain.RateLimitError
	var rejected *domain.RejectedError
	var transport *domain.TransportError
	switch {
	case errors.As(err, &unknown):
		return err
	case errors.As(err, &insufficient):
		return err
	case errors.As(err, &rateLimit):
		return err
	case errors.As(err, &rejected):
		return err
	case errors.As(err, &transport):
		return err
	default:
		return &domain.TransportError{Op: "exchange", Err: err}
	}
}
