package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
	"crypto_go/internal/strategy"
)

// Snapshot is the immutable view of engine state delivered to
// subscribers after every tick and every feed delivery.
type Snapshot struct {
	Ready             bool
	TopBid            decimal.Decimal
	TopAsk            decimal.Decimal
	Spread            decimal.Decimal
	Position          domain.Position
	PnL               decimal.Decimal
	AccountUnrealized decimal.Decimal
	SessionVolume     decimal.Decimal
	OpenOrders        []domain.OpenOrder
	DesiredOrders     []domain.DesiredOrder
	TradeLog          []string
	FeedStatus        FeedStatus

	Imbalance   strategy.ImbalanceLabel
	SkipBuySide bool
	SkipSell    bool
}

// buildSnapshot composes a Snapshot from current engine state. It
// never mutates the engine; callers own the returned copies.
func (e *Engine) buildSnapshot(desired []domain.DesiredOrder, quotes strategy.Quotes) Snapshot {
	pos := e.account.PositionFor(e.symbol)
	bid, ask, ok := e.depth.TopOfBook()
	spread := decimal.Zero
	if ok {
		spread = ask.Sub(bid)
	}

	pnl := decimal.Zero
	if !pos.IsFlat() {
		pnl = e.unitPnL(pos, bid, ask)
	}

	openOrdersCopy := make([]domain.OpenOrder, len(e.orders))
	copy(openOrdersCopy, e.orders)

	tradeLogCopy := make([]string, len(e.tradeLog))
	copy(tradeLogCopy, e.tradeLog)

	return Snapshot{
		Ready:             e.isReady(),
		TopBid:            bid,
		TopAsk:            ask,
		Spread:            spread,
		Position:          pos,
		PnL:               pnl,
		AccountUnrealized: e.account.TotalUnrealizedProfit,
		SessionVolume:     e.sessionVolume,
		OpenOrders:        openOrdersCopy,
		DesiredOrders:     desired,
		TradeLog:          tradeLogCopy,
		FeedStatus:        e.feeds,
		Imbalance:         quotes.Imbalance,
		SkipBuySide:       quotes.SkipBuySide,
		SkipSell:          quotes.SkipSellSide,
	}
}

// emitSnapshot builds a snapshot from current state with no derived
// quotes (used on bare feed-delivery updates outside a tick) and
// delivers it to subscribers. Delivery panics are recovered and
// logged per subscriber so one broken subscriber can't break another.
func (e *Engine) emitSnapshot() {
	e.deliver(e.buildSnapshot(nil, strategy.Quotes{}))
}

func (e *Engine) deliver(snap Snapshot) {
	e.subsMu.Lock()
	subs := make([]func(Snapshot), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.subsMu.Unlock()

	for _, fn := range subs {
		e.deliverOne(fn, snap)
	}
}

func (e *Engine) deliverOne(fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("snapshot subscriber panicked", slog.Any("panic", r))
		}
	}()
	fn(snap)
}

// isReady reports the readiness gates from spec's bootstrap/readiness
// rules: every feed has delivered and the startup-reset has run.
func (e *Engine) isReady() bool {
	return e.feeds.Ready() && e.startupResetDone
}

// unitPnL computes per-unit PnL using the side-aware reference price:
// long uses bid, short uses ask, and the mid when bid equals ask.
func (e *Engine) unitPnL(pos domain.Position, bid, ask decimal.Decimal) decimal.Decimal {
	ref := bid.Add(ask).Div(decimal.NewFromInt(2))
	if bid.Equal(ask) {
		ref = bid
	} else if pos.IsLong() {
		ref = bid
	} else if pos.IsShort() {
		ref = ask
	}
	if pos.IsLong() {
		return ref.Sub(pos.EntryPrice)
	}
	return pos.EntryPrice.Sub(ref)
}
