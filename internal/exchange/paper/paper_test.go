package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestExchange_MarketOrderFillsImmediately(t *testing.T) {
	e := New("BTCUSDT", dec("10000"))
	e.PushTicker(domain.TickerSnapshot{LastPrice: dec("100")})

	order, err := e.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: "1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != domain.StatusFilled {
		t.Errorf("expected immediate fill, got status %s", order.Status)
	}
	if len(e.Fills()) != 1 {
		t.Fatalf("expected one fill, got %d", len(e.Fills()))
	}
}

func TestExchange_LimitOrderRestsUntilBookCrosses(t *testing.T) {
	e := New("BTCUSDT", dec("10000"))
	e.PushDepth(domain.DepthSnapshot{
		Bids: []domain.Level{{Price: dec("99"), Qty: dec("1")}},
		Asks: []domain.Level{{Price: dec("101"), Qty: dec("1")}},
	})

	order, err := e.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.OrderTypeLimit, Price: "100", Quantity: "1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != domain.StatusNew {
		t.Fatalf("expected resting order, got status %s", order.Status)
	}
	if len(e.Fills()) != 0 {
		t.Fatalf("expected no fill before the ask reaches the limit price, got %d", len(e.Fills()))
	}

	e.PushDepth(domain.DepthSnapshot{
		Bids: []domain.Level{{Price: dec("99.5"), Qty: dec("1")}},
		Asks: []domain.Level{{Price: dec("100"), Qty: dec("1")}},
	})

	if len(e.Fills()) != 1 {
		t.Fatalf("expected the resting BUY to fill once the ask reached its price, got %d", len(e.Fills()))
	}
}

func TestExchange_CancelOrder(t *testing.T) {
	e := New("BTCUSDT", dec("10000"))
	order, err := e.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideSell, Type: domain.OrderTypeLimit, Price: "150", Quantity: "1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if err := e.CancelOrder(context.Background(), domain.CancelOrderRequest{Symbol: "BTCUSDT", OrderID: order.OrderID}); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	if err := e.CancelOrder(context.Background(), domain.CancelOrderRequest{Symbol: "BTCUSDT", OrderID: order.OrderID}); err == nil {
		t.Error("expected UnknownOrderError cancelling an already-cancelled order")
	}
}

func TestExchange_InsufficientBalanceThreshold(t *testing.T) {
	e := New("BTCUSDT", dec("100"))
	e.SetInsufficientBalanceThreshold(dec("50"))
	e.PushTicker(domain.TickerSnapshot{LastPrice: dec("100")})

	_, err := e.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: "1",
	})
	if err == nil {
		t.Fatal("expected an insufficient-balance error")
	}
	if _, ok := err.(*domain.InsufficientBalanceError); !ok {
		t.Errorf("expected *domain.InsufficientBalanceError, got %T", err)
	}
}

func TestExchange_PositionAccountingOnClose(t *testing.T) {
	e := New("BTCUSDT", dec("10000"))
	e.PushTicker(domain.TickerSnapshot{LastPrice: dec("100")})

	if _, err := e.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: "1",
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	e.PushTicker(domain.TickerSnapshot{LastPrice: dec("110")})

	if _, err := e.CreateOrder(context.Background(), domain.CreateOrderRequest{
		Symbol: "BTCUSDT", Side: domain.SideSell, Type: domain.OrderTypeMarket, Quantity: "1", ReduceOnly: true,
	}); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := e.Balance(); !got.Equal(dec("10010")) {
		t.Errorf("expected realized PnL of +10 credited to balance, got %s", got)
	}
}
