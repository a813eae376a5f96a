package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"crypto_go/internal/coordinator"
	"crypto_go/internal/domain"
	"crypto_go/internal/metrics"
	"crypto_go/internal/reconcile"
	"crypto_go/internal/ratelimit"
	"crypto_go/internal/strategy"
)

// tick runs one control-loop iteration: readiness gates, desired-quote
// derivation, reprice suppression, plan reconciliation, protective
// stop, risk check, and snapshot emission. Only this method ever calls
// the exchange.
func (e *Engine) tick(ctx context.Context) {
	if !e.runStartupReset(ctx) {
		return
	}
	if !e.feeds.Ready() {
		e.logMissingFeeds()
		return
	}

	decision := e.rl.BeforeCycle()
	if decision != ratelimit.Run {
		e.log.Debug("tick skipped by rate-limit controller", slog.String("decision", decision.String()))
		if decision == ratelimit.Paused {
			metrics.RecordRateLimitPause(e.symbol)
		}
		metrics.RecordCycle(e.symbol, decision.String())
		return
	}
	metrics.RecordCycle(e.symbol, "ran")
	metrics.SetConsecutive429(e.symbol, e.rl.Consecutive429())
	metrics.SetOpenOrders(e.symbol, len(e.orders))

	hadRateLimit := false
	defer func() { e.rl.OnCycleComplete(hadRateLimit) }()

	pos := e.account.PositionFor(e.symbol)
	bid, ask, haveBook := e.depth.TopOfBook()

	if haveBook && bid.GreaterThanOrEqual(ask) {
		err := &domain.InvalidStateError{Invariant: "top-of-book crossed: bid >= ask"}
		e.log.Error("aborting tick on invalid state", slog.Any("error", err),
			slog.String("bid", bid.String()), slog.String("ask", ask.String()))
		return
	}

	entriesOK := haveBook && e.entriesAllowed()
	quotes := e.strat.DeriveDesired(strategy.Inputs{
		Depth:     e.depth,
		Position:  pos,
		Config:    e.cfg,
		EntriesOK: entriesOK,
	})

	if quotes.ForceClose && !pos.IsFlat() {
		e.log.Warn("forced market close on extreme depth imbalance", slog.String("symbol", e.symbol))
		metrics.RecordForcedClose(e.symbol)
		if err := e.forcedClose(ctx, pos, bid, ask); err != nil {
			if e.registerIfRateLimit(err, "forcedClose") {
				hadRateLimit = true
				e.enforceRateLimitStop(ctx)
				return
			}
			e.log.Error("forced close failed", slog.Any("error", err))
		}
		e.emitSnapshot()
		return
	}

	desired := e.suppressReprices(quotes.Desired)

	openForPlan := filterForPlan(e.orders)
	plan := reconcile.MakeOrderPlan(openForPlan, desired, e.cfg.PriceTick, e.cfg.QtyStep)

	cancelled := make(map[string]bool, len(plan.ToCancel))
	for _, o := range plan.ToCancel {
		if err := e.coord.CancelOrder(ctx, e.symbol, o.OrderID); err != nil {
			if e.registerIfRateLimit(err, "cancelOrder") {
				hadRateLimit = true
				e.enforceRateLimitStop(ctx)
				return
			}
			e.log.Error("cancel failed", slog.String("order_id", o.OrderID), slog.Any("error", err))
			continue
		}
		cancelled[o.OrderID] = true
		metrics.RecordOrderCancelled(e.symbol, string(o.Side))
		e.logTrade("CANCELED", string(o.Side), o.OrderID, o.ClientOrderID, o.Price.String(), o.OrigQty.String(), o.ReduceOnly)
	}

	for _, d := range plan.ToPlace {
		order, err := e.placeDesired(ctx, d, pos, bid, ask)
		if err != nil {
			if e.registerIfRateLimit(err, "placeOrder") {
				hadRateLimit = true
				e.enforceRateLimitStop(ctx)
				return
			}
			var insufficient *domain.InsufficientBalanceError
			if errors.As(err, &insufficient) {
				e.armInsufficientBalanceCooldown()
				break
			}
			var guard *domain.PriceGuardFailError
			if errors.As(err, &guard) {
				e.log.Warn("price guard rejected desired order", slog.String("side", string(d.Side)), slog.Any("error", err))
				continue
			}
			e.log.Error("place failed", slog.String("side", string(d.Side)), slog.Any("error", err))
			continue
		}
		if !d.ReduceOnly {
			e.lastEntryPlaced[d.Side] = time.Now()
			e.maybePlacePreemptiveStop(ctx, d.Side, order)
		}
		e.sessionVolume = e.sessionVolume.Add(d.Amount)
		metrics.RecordOrderPlaced(e.symbol, string(d.Side), d.ReduceOnly)
		e.logTrade("PLACED", string(d.Side), order.OrderID, order.ClientOrderID, d.Price, d.Amount.String(), d.ReduceOnly)
	}

	liveOrders := excludeCancelled(e.orders, cancelled)

	if err := e.ensureProtectiveStop(ctx, pos, bid, ask, liveOrders); err != nil {
		if e.registerIfRateLimit(err, "protectiveStop") {
			hadRateLimit = true
			e.enforceRateLimitStop(ctx)
			return
		}
		e.log.Error("protective stop maintenance failed", slog.Any("error", err))
	}

	// Defense in depth: if the protective-stop pass above still left the
	// position unprotected (e.g. a transient placement failure), fall
	// back to the orphan reconciler's simpler reduce-only-limit policy.
	if !pos.IsFlat() {
		res, err := reconcile.ReconcileOrphanedPosition(ctx, coordinatorPlacer{e}, e.symbol, pos, liveOrders,
			reconcile.Prices{TopBid: bid, TopAsk: ask, LastPrice: e.ticker.LastPrice},
			reconcile.Opts{StrictLimitOnly: e.cfg.StrictLimitOnly}, e.cfg.StrictLimitOnly)
		if err != nil {
			if e.registerIfRateLimit(err, "orphanReconcile") {
				hadRateLimit = true
				e.enforceRateLimitStop(ctx)
				return
			}
			e.log.Error("orphan reconciliation failed", slog.Any("error", err))
		} else if res.TookAction {
			e.log.Warn("orphan reconciler placed protection the protective-stop pass missed", slog.String("symbol", e.symbol))
		}
	}

	if haveBook && e.shouldStopLoss(pos, bid, ask) {
		metrics.RecordStopLossFired(e.symbol)
		if err := e.fireStopLoss(ctx, pos, bid, ask); err != nil {
			if e.registerIfRateLimit(err, "stopLossFire") {
				hadRateLimit = true
				e.enforceRateLimitStop(ctx)
				return
			}
			e.log.Error("stop-loss fire failed", slog.Any("error", err))
		}
	}

	e.deliver(e.buildSnapshot(desired, quotes))
}

// runStartupReset performs the bootstrap cancel-all-orders sweep on
// the first tick after the orders feed has delivered, and reports
// whether the caller should continue processing this tick.
func (e *Engine) runStartupReset(ctx context.Context) bool {
	if e.startupResetDone {
		return true
	}
	if !e.feeds.Orders {
		return false
	}
	if len(e.orders) > 0 {
		e.log.Info("startup reset: cancelling resting orders", slog.Int("count", len(e.orders)), slog.String("symbol", e.symbol))
		if err := e.coord.CancelAllOrders(ctx, e.symbol); err != nil {
			e.log.Error("startup reset cancel-all failed", slog.Any("error", err))
		}
	}
	e.startupResetDone = true
	return false
}

func (e *Engine) logMissingFeeds() {
	missing := map[string]bool{
		"account": !e.feeds.Account,
		"orders":  !e.feeds.Orders,
		"depth":   !e.feeds.Depth,
		"ticker":  !e.feeds.Ticker,
	}
	for name, isMissing := range missing {
		if isMissing && !e.lastLoggedMissingFeed[name] {
			e.log.Warn("required feed has not delivered yet", slog.String("feed", name))
			e.lastLoggedMissingFeed[name] = true
		}
	}
}

// entriesAllowed reports whether new (non-reduce-only) entries may be
// placed this tick: no active cooldown and the rate-limit controller
// permits entries.
func (e *Engine) entriesAllowed() bool {
	now := time.Now()
	if now.Before(e.insufficientBalanceCooldownUntil) {
		return false
	}
	if now.Before(e.postCloseCooldownUntil) {
		return false
	}
	return !e.rl.ShouldBlockEntries()
}

func (e *Engine) armInsufficientBalanceCooldown() {
	wasArmed := time.Now().Before(e.insufficientBalanceCooldownUntil)
	e.insufficientBalanceCooldownUntil = time.Now().Add(15 * time.Second)
	if !wasArmed {
		e.log.Warn("insufficient balance, arming entry cooldown", slog.String("symbol", e.symbol))
	}
}

func (e *Engine) registerIfRateLimit(err error, source string) bool {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		e.rl.RegisterRateLimit(source)
		return true
	}
	return false
}

// suppressReprices pins each entry-side desired order to its existing
// resting price when the move is too small or too soon, per spec's
// reprice-dwell rule.
func (e *Engine) suppressReprices(desired []domain.DesiredOrder) []domain.DesiredOrder {
	dwell := time.Duration(e.cfg.RepriceDwellMs) * time.Millisecond
	out := make([]domain.DesiredOrder, len(desired))
	copy(out, desired)

	for i, d := range out {
		if d.ReduceOnly {
			continue
		}
		existing := findRestingEntry(e.orders, d.Side)
		if existing == nil {
			continue
		}
		desiredPrice := parseOrZero(d.Price)
		tooSmallMove := tickDelta(desiredPrice, existing.Price, e.cfg.PriceTick) < e.cfg.MinRepriceTicks
		tooSoon := time.Since(e.lastEntryPlaced[d.Side]) < dwell
		if tooSmallMove || tooSoon {
			out[i].Price = existing.Price.StringFixed(tickDecimalsOf(e.cfg.PriceTick))
			metrics.RecordRepriceSuppressed(e.symbol, string(d.Side))
		}
	}
	return out
}

func parseOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func tickDecimalsOf(tick decimal.Decimal) int32 {
	exp := tick.Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

// filterForPlan excludes terminal and stop-like orders, the set the
// Plan Reconciler is contracted to receive.
func filterForPlan(orders []domain.OpenOrder) []domain.OpenOrder {
	out := make([]domain.OpenOrder, 0, len(orders))
	for _, o := range orders {
		if !o.IsOpen() || o.IsStopLike() {
			continue
		}
		out = append(out, o)
	}
	return out
}

// excludeCancelled masks orders cancelled earlier in this same tick out
// of the last-known orders snapshot, so later steps in the tick don't
// treat an order as live protection or a resting entry until the next
// orders-feed update confirms its terminal state.
func excludeCancelled(orders []domain.OpenOrder, cancelled map[string]bool) []domain.OpenOrder {
	if len(cancelled) == 0 {
		return orders
	}
	out := make([]domain.OpenOrder, 0, len(orders))
	for _, o := range orders {
		if cancelled[o.OrderID] {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (e *Engine) placeDesired(ctx context.Context, d domain.DesiredOrder, pos domain.Position, bid, ask decimal.Decimal) (domain.OpenOrder, error) {
	return e.coord.PlaceOrder(ctx, coordinator.PlaceOrderRequest{
		Slot:           coordinator.SlotLimit,
		Symbol:         e.symbol,
		Side:           d.Side,
		Price:          parseOrZero(d.Price),
		Qty:            d.Amount,
		ReduceOnly:     d.ReduceOnly,
		TimeInForce:    domain.TIFGTC,
		Precision:      e.precision(),
		Bid:            bid,
		Ask:            ask,
		MarkPrice:      e.markPrice(),
		MaxSlippagePct: e.cfg.MaxCloseSlippagePct,
	})
}

// maybePlacePreemptiveStop closes the momentary protection gap after a
// top-of-book entry, per spec's pre-emptive stop rule: only when both
// quote offsets are zero (the engine is quoting exactly at the book).
func (e *Engine) maybePlacePreemptiveStop(ctx context.Context, side domain.Side, order domain.OpenOrder) {
	if !e.cfg.BidOffset.IsZero() || !e.cfg.AskOffset.IsZero() {
		return
	}
	_, ask, ok := e.depth.TopOfBook()
	if !ok {
		return
	}
	bid, _, _ := e.depth.TopOfBook()

	var trigger decimal.Decimal
	var stopSide domain.Side
	switch side {
	case domain.SideBuy:
		stopSide, trigger = domain.SideSell, ask
	case domain.SideSell:
		stopSide, trigger = domain.SideBuy, bid
	}

	_, err := e.coord.PlacePreemptiveStopLimitOrder(ctx, coordinator.PlaceStopRequest{
		Symbol:    e.symbol,
		Side:      stopSide,
		StopPrice: trigger,
		LastPrice: e.ticker.LastPrice,
		Qty:       order.OrigQty,
		Precision: e.precision(),
	})
	if err != nil {
		e.log.Warn("pre-emptive stop placement failed", slog.Any("error", err))
	}
}

// ensureProtectiveStop implements spec's NoStop/HasValidStop/HasStaleStop
// state machine: place when absent, replace when stale, restore the
// prior stop on a failed replace.
func (e *Engine) ensureProtectiveStop(ctx context.Context, pos domain.Position, bid, ask decimal.Decimal, orders []domain.OpenOrder) error {
	if pos.IsFlat() || e.cfg.LossLimit.IsZero() {
		return nil
	}
	closeSide := pos.CloseSide()
	lastPrice := e.ticker.LastPrice
	if lastPrice.IsZero() {
		lastPrice = quoteSideReference(closeSide, bid, ask)
	}

	desiredStop := calcStopLossPrice(pos.EntryPrice, closeSide, e.cfg.LossLimit)
	if !isValidStopPrice(closeSide, desiredStop, lastPrice, e.cfg.PriceTick) {
		return nil
	}

	current := findStopLike(orders, closeSide)

	if current == nil {
		_, err := e.coord.PlaceStopLossOrder(ctx, coordinator.PlaceStopRequest{
			Symbol: e.symbol, Side: closeSide, StopPrice: desiredStop, LastPrice: lastPrice,
			Qty: pos.Amt.Abs(), Precision: e.precision(),
		})
		return err
	}

	stale := !isValidStopPrice(closeSide, current.StopPrice, lastPrice, e.cfg.PriceTick) ||
		isTighter(closeSide, desiredStop, current.StopPrice)

	if _, isOffsetMaker := e.strat.(*strategy.OffsetMaker); isOffsetMaker {
		quoteRef := quoteSideReference(closeSide, bid, ask)
		if tickDelta(quoteRef, current.Price, e.cfg.PriceTick) >= 1 && isValidStopPrice(closeSide, quoteRef, lastPrice, e.cfg.PriceTick) {
			stale = true
			desiredStop = quoteRef
		}
	}

	if !stale {
		return nil
	}

	previous := *current
	if err := e.coord.CancelOrder(ctx, e.symbol, current.OrderID); err != nil {
		var unknown *domain.UnknownOrderError
		if !errors.As(err, &unknown) {
			return err
		}
	}

	_, err := e.coord.PlaceStopLossOrder(ctx, coordinator.PlaceStopRequest{
		Symbol: e.symbol, Side: closeSide, StopPrice: desiredStop, LastPrice: lastPrice,
		Qty: pos.Amt.Abs(), Precision: e.precision(),
	})
	if err != nil {
		e.log.Warn("stop replace failed, attempting to restore previous stop", slog.Any("error", err))
		if isValidStopPrice(closeSide, previous.StopPrice, lastPrice, e.cfg.PriceTick) {
			_, restoreErr := e.coord.PlaceStopLossOrder(ctx, coordinator.PlaceStopRequest{
				Symbol: e.symbol, Side: closeSide, StopPrice: previous.StopPrice, LastPrice: lastPrice,
				Qty: pos.Amt.Abs(), Precision: e.precision(),
			})
			if restoreErr != nil {
				e.log.Error("failed to restore previous stop after replace failure", slog.Any("error", restoreErr))
			}
		}
		return err
	}
	return nil
}

// flushAllOrders cancels every open order for the symbol, used before
// a risk-driven or rate-limit-driven forced close.
func (e *Engine) flushAllOrders(ctx context.Context) {
	if err := e.coord.CancelAllOrders(ctx, e.symbol); err != nil {
		e.log.Error("flush all orders failed", slog.Any("error", err))
		return
	}
	// Every pending order was just cancelled, so no slot is still
	// waiting on one.
	e.coord.UnlockOperating(coordinator.SlotLimit)
	e.coord.UnlockOperating(coordinator.SlotStop)
}

// fireStopLoss implements spec's risk-check action: flush working
// orders then place a reduce-only close, LIMIT+IOC when strictLimitOnly
// else a slippage-guarded market close.
func (e *Engine) fireStopLoss(ctx context.Context, pos domain.Position, bid, ask decimal.Decimal) error {
	e.log.Warn("stop-loss triggered", slog.String("symbol", e.symbol))
	e.flushAllOrders(ctx)

	closeSide := pos.CloseSide()
	if e.cfg.StrictLimitOnly {
		price := aggressiveCrossingPrice(closeSide, bid, ask)
		_, err := e.coord.PlaceOrder(ctx, coordinator.PlaceOrderRequest{
			Slot: coordinator.SlotLimit, Symbol: e.symbol, Side: closeSide, Price: price,
			Qty: pos.Amt.Abs(), ReduceOnly: true, TimeInForce: domain.TIFIOC,
			Precision: e.precision(), Bid: bid, Ask: ask, MarkPrice: e.markPrice(),
			MaxSlippagePct: e.cfg.MaxCloseSlippagePct,
		})
		return err
	}

	_, err := e.coord.MarketClose(ctx, coordinator.MarketCloseRequest{
		Symbol: e.symbol, Side: closeSide, Qty: pos.Amt.Abs(),
		ReferencePrice: quoteSideReference(closeSide, bid, ask), MarkPrice: e.markPrice(),
		MaxSlippagePct: e.cfg.MaxCloseSlippagePct, Precision: e.precision(),
	})
	return err
}

// forcedClose is the Offset-Maker's extreme-imbalance exit: always a
// market close regardless of strictLimitOnly, since the book itself is
// the danger signal rather than a loss-limit breach.
func (e *Engine) forcedClose(ctx context.Context, pos domain.Position, bid, ask decimal.Decimal) error {
	e.flushAllOrders(ctx)
	closeSide := pos.CloseSide()
	_, err := e.coord.MarketClose(ctx, coordinator.MarketCloseRequest{
		Symbol: e.symbol, Side: closeSide, Qty: pos.Amt.Abs(),
		ReferencePrice: quoteSideReference(closeSide, bid, ask), MarkPrice: e.markPrice(),
		MaxSlippagePct: e.cfg.MaxCloseSlippagePct, Precision: e.precision(),
	})
	return err
}

// enforceRateLimitStop is spec's rate-limit action: if a position
// exists, close it (market close preferred, guarded by
// maxCloseSlippagePct; falls back to a limit close on guard failure).
func (e *Engine) enforceRateLimitStop(ctx context.Context) {
	pos := e.account.PositionFor(e.symbol)
	if pos.IsFlat() {
		return
	}
	bid, ask, ok := e.depth.TopOfBook()
	if !ok {
		return
	}
	closeSide := pos.CloseSide()

	_, err := e.coord.MarketClose(ctx, coordinator.MarketCloseRequest{
		Symbol: e.symbol, Side: closeSide, Qty: pos.Amt.Abs(),
		ReferencePrice: quoteSideReference(closeSide, bid, ask), MarkPrice: e.markPrice(),
		MaxSlippagePct: e.cfg.MaxCloseSlippagePct, Precision: e.precision(),
	})
	if err == nil {
		return
	}
	var guard *domain.PriceGuardFailError
	if errors.As(err, &guard) {
		price := aggressiveCrossingPrice(closeSide, bid, ask)
		if _, limitErr := e.coord.PlaceOrder(ctx, coordinator.PlaceOrderRequest{
			Slot: coordinator.SlotLimit, Symbol: e.symbol, Side: closeSide, Price: price,
			Qty: pos.Amt.Abs(), ReduceOnly: true, TimeInForce: domain.TIFIOC,
			Precision: e.precision(), Bid: bid, Ask: ask, MarkPrice: e.markPrice(),
			MaxSlippagePct: e.cfg.MaxCloseSlippagePct,
		}); limitErr != nil {
			e.log.Error("rate-limit enforced limit-close also failed", slog.Any("error", limitErr))
		}
		return
	}
	e.log.Error("rate-limit enforced market close failed", slog.Any("error", err))
}
