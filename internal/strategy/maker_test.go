package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func baseConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		PriceTick:   d("0.1"),
		QtyStep:     d("0.001"),
		TradeAmount: d("0.01"),
		VolumeBoost: d("1"),
	}
}

func baseDepth() domain.DepthSnapshot {
	return domain.DepthSnapshot{
		Bids: []domain.Level{{Price: d("100"), Qty: d("1")}},
		Asks: []domain.Level{{Price: d("100.2"), Qty: d("1")}},
	}
}

func TestMakerFlatEmitsBothSides(t *testing.T) {
	m := NewMaker()
	q := m.DeriveDesired(Inputs{
		Depth:     baseDepth(),
		Position:  domain.Position{Amt: decimal.Zero},
		Config:    baseConfig(),
		EntriesOK: true,
	})
	if len(q.Desired) != 2 {
		t.Fatalf("expected 2 desired orders, got %d", len(q.Desired))
	}
	if q.Desired[0].Side != domain.SideBuy || q.Desired[1].Side != domain.SideSell {
		t.Errorf("expected BUY then SELL, got %+v", q.Desired)
	}
}

func TestMakerFlatBlockedWhenEntriesNotOK(t *testing.T) {
	m := NewMaker()
	q := m.DeriveDesired(Inputs{
		Depth:     baseDepth(),
		Position:  domain.Position{Amt: decimal.Zero},
		Config:    baseConfig(),
		EntriesOK: false,
	})
	if len(q.Desired) != 0 {
		t.Errorf("expected no desired orders while entries are blocked, got %+v", q.Desired)
	}
}

func TestMakerNonFlatEmitsSingleReduceOnlyClose(t *testing.T) {
	m := NewMaker()
	q := m.DeriveDesired(Inputs{
		Depth:    baseDepth(),
		Position: domain.Position{Amt: d("0.5")},
		Config:   baseConfig(),
	})
	if len(q.Desired) != 1 {
		t.Fatalf("expected exactly one close order, got %d", len(q.Desired))
	}
	got := q.Desired[0]
	if got.Side != domain.SideSell || !got.ReduceOnly || !got.Amount.Equal(d("0.5")) {
		t.Errorf("unexpected close order: %+v", got)
	}
}

func TestMakerShortClosesWithBuyAtBid(t *testing.T) {
	m := NewMaker()
	q := m.DeriveDesired(Inputs{
		Depth:    baseDepth(),
		Position: domain.Position{Amt: d("-0.3")},
		Config:   baseConfig(),
	})
	if q.Desired[0].Side != domain.SideBuy || q.Desired[0].Price != "100.0" {
		t.Errorf("expected BUY close at bid 100.0, got %+v", q.Desired[0])
	}
}

func TestMakerNoQuotesWithoutTopOfBook(t *testing.T) {
	m := NewMaker()
	q := m.DeriveDesired(Inputs{
		Depth:     domain.DepthSnapshot{},
		Position:  domain.Position{Amt: decimal.Zero},
		Config:    baseConfig(),
		EntriesOK: true,
	})
	if len(q.Desired) != 0 {
		t.Errorf("expected no quotes without a valid top of book, got %+v", q.Desired)
	}
}
