// Package engine implements the Strategy Engine: the single-threaded
// cooperative control loop that reconciles desired quotes against live
// open orders, maintains a protective stop, debounces reprices, and
// enforces the order-lifecycle safety invariants.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"crypto_go/internal/coordinator"
	"crypto_go/internal/domain"
	"crypto_go/internal/event"
	"crypto_go/internal/metrics"
	"crypto_go/internal/ratelimit"
	"crypto_go/internal/storage"
	"crypto_go/internal/strategy"
)

// FeedStatus records whether each subscription has delivered at least
// once since engine construction.
type FeedStatus struct {
	Account bool
	Orders  bool
	Depth   bool
	Ticker  bool
}

// Ready reports whether every feed has delivered.
func (f FeedStatus) Ready() bool {
	return f.Account && f.Orders && f.Depth && f.Ticker
}

// Engine owns all mutable state for one symbol's control loop. Every
// field below except the atomic nextSeq counter is touched only from
// the goroutine running Run; external callers interact exclusively
// through Inbox and Subscribe.
type Engine struct {
	symbol   string
	cfg      domain.StrategyConfig
	exchange domain.ExchangePort
	coord    *coordinator.Coordinator
	rl       *ratelimit.Controller
	strat    strategy.Strategy
	log      *slog.Logger
	store    *storage.TradeLogStore

	refreshInterval time.Duration

	inbox   chan event.Message
	nextSeq atomic.Uint64

	account domain.AccountSnapshot
	orders  []domain.OpenOrder
	depth   domain.DepthSnapshot
	ticker  domain.TickerSnapshot
	feeds   FeedStatus

	startupResetDone bool

	insufficientBalanceCooldownUntil time.Time
	postCloseCooldownUntil          time.Time
	lastAbsPosition                 decimal.Decimal
	lastEntryPlaced                 map[domain.Side]time.Time
	lastLoggedMissingFeed           map[string]bool

	sessionVolume decimal.Decimal
	tradeLog      []string

	subsMu      sync.Mutex
	nextSubID   int
	subscribers map[int]func(Snapshot)
}

// New builds an Engine. cfg is normalized via Defaults before use.
func New(exchange domain.ExchangePort, cfg domain.StrategyConfig, coord *coordinator.Coordinator, rl *ratelimit.Controller, strat strategy.Strategy, store *storage.TradeLogStore, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.Defaults()
	return &Engine{
		symbol:                cfg.Symbol,
		cfg:                   cfg,
		exchange:              exchange,
		coord:                 coord,
		rl:                    rl,
		strat:                 strat,
		log:                   log,
		store:                 store,
		refreshInterval:       time.Duration(cfg.RefreshMs) * time.Millisecond,
		inbox:                 make(chan event.Message, 1024),
		lastEntryPlaced:       make(map[domain.Side]time.Time),
		lastLoggedMissingFeed: make(map[string]bool),
		subscribers:           make(map[int]func(Snapshot)),
	}
}

// Inbox returns the send side of the engine's owned channel. Feed
// adapters and the periodic ticker enqueue messages here; nothing else
// may mutate engine state.
func (e *Engine) Inbox() chan<- event.Message {
	return e.inbox
}

// Subscribe registers fn to receive a Snapshot after every tick and
// every feed delivery. The returned func unregisters it.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.subsMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.subsMu.Unlock()

	return func() {
		e.subsMu.Lock()
		delete(e.subscribers, id)
		e.subsMu.Unlock()
	}
}

// Run subscribes to the exchange's feeds, starts the periodic ticker,
// and drains the inbox until ctx is cancelled. It is the sole owner of
// engine state: every mutation happens on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	unsubAccount := e.exchange.WatchAccount(func(snap domain.AccountSnapshot) {
		e.enqueue(event.AccountUpdate{BaseMessage: e.nextBase(), Snapshot: snap})
	})
	defer unsubAccount()

	unsubOrders := e.exchange.WatchOrders(func(orders []domain.OpenOrder) {
		e.enqueue(event.OrdersUpdate{BaseMessage: e.nextBase(), Orders: orders})
	})
	defer unsubOrders()

	unsubDepth := e.exchange.WatchDepth(e.symbol, func(depth domain.DepthSnapshot) {
		ev := event.AcquireDepthUpdate()
		ev.BaseMessage = e.nextBase()
		ev.Depth = depth
		e.enqueue(ev)
	})
	defer unsubDepth()

	unsubTicker := e.exchange.WatchTicker(e.symbol, func(t domain.TickerSnapshot) {
		e.enqueue(event.TickerUpdate{BaseMessage: e.nextBase(), Ticker: t})
	})
	defer unsubTicker()

	ticker := time.NewTicker(e.refreshInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ev := event.AcquireTick()
				ev.BaseMessage = e.nextBase()
				e.enqueue(ev)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-e.inbox:
			e.processMessage(ctx, msg)
		}
	}
}

func (e *Engine) nextBase() event.BaseMessage {
	return event.BaseMessage{Seq: e.nextSeq.Add(1), Ts: time.Now()}
}

// enqueue is safe to call from feed-callback goroutines; once the
// channel buffer is full it blocks until Run drains a message. It
// matches spec's "feed handlers never call place/cancel" rule by only
// ever writing a message.
func (e *Engine) enqueue(msg event.Message) {
	e.inbox <- msg
}

func (e *Engine) processMessage(ctx context.Context, msg event.Message) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("engine recovered from panic processing message",
				slog.Any("panic", r), slog.String("type", msgTypeName(msg)))
		}
	}()

	switch m := msg.(type) {
	case event.AccountUpdate:
		e.handleAccountUpdate(m.Snapshot)
		e.emitSnapshot()
	case event.OrdersUpdate:
		e.handleOrdersUpdate(m.Orders)
		e.emitSnapshot()
	case *event.DepthUpdate:
		e.depth = m.Depth
		e.feeds.Depth = true
		event.ReleaseDepthUpdate(m)
		e.emitSnapshot()
	case event.TickerUpdate:
		e.ticker = m.Ticker
		e.feeds.Ticker = true
		e.emitSnapshot()
	case *event.Tick:
		event.ReleaseTick(m)
		e.tick(ctx)
	}
}

func msgTypeName(msg event.Message) string {
	switch msg.(type) {
	case event.AccountUpdate:
		return "AccountUpdate"
	case event.OrdersUpdate:
		return "OrdersUpdate"
	case *event.DepthUpdate:
		return "DepthUpdate"
	case event.TickerUpdate:
		return "TickerUpdate"
	case *event.Tick:
		return "Tick"
	default:
		return "unknown"
	}
}

// handleAccountUpdate mutates position state and arms the post-close
// cooldown on the flat-transition edge.
func (e *Engine) handleAccountUpdate(snap domain.AccountSnapshot) {
	e.account = snap
	e.feeds.Account = true

	pos := snap.PositionFor(e.symbol)
	absAmt := pos.Amt.Abs()
	if e.lastAbsPosition.GreaterThan(domain.FlatEpsilon) && absAmt.LessThanOrEqual(domain.FlatEpsilon) {
		e.postCloseCooldownUntil = time.Now().Add(10 * time.Second)
		e.log.Info("position closed, arming post-close cooldown", slog.String("symbol", e.symbol))
	}
	e.lastAbsPosition = absAmt

	unrealized, _ := snap.TotalUnrealizedProfit.Float64()
	metrics.SetUnrealizedPnL(e.symbol, unrealized)
}

// handleOrdersUpdate rebuilds the local open-orders mirror from the
// full, non-delta snapshot, and releases any coordinator slot whose
// pending order has reached a terminal state.
func (e *Engine) handleOrdersUpdate(orders []domain.OpenOrder) {
	e.orders = orders
	e.feeds.Orders = true

	for _, slot := range []coordinator.Slot{coordinator.SlotLimit, coordinator.SlotStop} {
		pendingID := e.coord.PendingOrderID(slot)
		if pendingID == "" {
			continue
		}
		stillOpen := false
		for _, o := range orders {
			if o.OrderID == pendingID && o.IsOpen() {
				stillOpen = true
				break
			}
		}
		if !stillOpen {
			e.coord.ObserveTerminal(slot, pendingID)
		}
	}
}

func (e *Engine) logTrade(kind, side, orderID, clientOrderID, price, qty string, reduceOnly bool) {
	line := time.Now().Format(time.RFC3339) + " " + kind + " " + side + " " + qty + "@" + price
	e.tradeLog = append(e.tradeLog, line)
	maxEntries := e.cfg.MaxLogEntries
	if maxEntries > 0 && len(e.tradeLog) > maxEntries {
		e.tradeLog = e.tradeLog[len(e.tradeLog)-maxEntries:]
	}
	if e.store != nil {
		go func() {
			_ = e.store.RecordTrade(context.Background(), storage.TradeRecord{
				Seq: e.nextSeq.Load(), Symbol: e.symbol, Side: side, Event: kind,
				OrderID: orderID, ClientOrderID: clientOrderID, Price: price, Qty: qty,
				ReduceOnly: reduceOnly, Ts: time.Now(),
			})
		}()
	}
}
