package quant

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundPriceToTick(t *testing.T) {
	tick := d("0.1")
	tests := []struct {
		name  string
		price string
		side  Side
		want  string
	}{
		{"buy rounds down", "100.17", SideBuy, "100.1"},
		{"sell rounds up", "100.11", SideSell, "100.2"},
		{"already on tick", "100.1", SideBuy, "100.1"},
		{"already on tick sell", "100.1", SideSell, "100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundPriceToTick(d(tt.price), tick, tt.side)
			if !got.Equal(d(tt.want)) {
				t.Errorf("RoundPriceToTick(%s) = %s, want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestRoundQtyDownToStep(t *testing.T) {
	step := d("0.001")
	got := RoundQtyDownToStep(d("1.2349"), step)
	if !got.Equal(d("1.234")) {
		t.Errorf("RoundQtyDownToStep = %s, want 1.234", got)
	}
}

func TestTickDecimals(t *testing.T) {
	tests := []struct {
		tick string
		want int32
	}{
		{"0.01", 2},
		{"0.0001", 4},
		{"1", 0},
		{"100", 0},
	}
	for _, tt := range tests {
		if got := TickDecimals(d(tt.tick)); got != tt.want {
			t.Errorf("TickDecimals(%s) = %d, want %d", tt.tick, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(d("100.1"), d("0.01")); got != "100.10" {
		t.Errorf("FormatPrice = %s, want 100.10", got)
	}
}

func TestSameWithinTolerance(t *testing.T) {
	if !SameWithinTolerance(d("1.0005"), d("1.0000"), d("0.001")) {
		t.Error("expected within tolerance")
	}
	if SameWithinTolerance(d("1.01"), d("1.00"), d("0.001")) {
		t.Error("expected outside tolerance")
	}
}

func FuzzRoundPriceToTick(f *testing.F) {
	f.Add("100.17", "0.1")
	f.Add("0", "0.01")
	f.Add("-5.5", "0.5")

	f.Fuzz(func(t *testing.T, price, tick string) {
		p, err1 := decimal.NewFromString(price)
		tk, err2 := decimal.NewFromString(tick)
		if err1 != nil || err2 != nil {
			t.Skip()
		}
		// Should never panic, regardless of input.
		_ = RoundPriceToTick(p, tk, SideBuy)
		_ = RoundPriceToTick(p, tk, SideSell)
	})
}
