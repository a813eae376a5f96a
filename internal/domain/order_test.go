package domain

import "testing"

func TestOpenOrderIsStopLike(t *testing.T) {
	tests := []struct {
		name      string
		orderType OrderType
		stopPrice string
		want      bool
	}{
		{"stop market by type", OrderTypeStopMarket, "0", true},
		{"trailing stop by type", OrderTypeTrailingStopMarket, "0", true},
		{"limit with stop price", OrderTypeLimit, "100", true},
		{"plain limit", OrderTypeLimit, "0", false},
		{"plain market", OrderTypeMarket, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := OpenOrder{Type: tt.orderType, StopPrice: dec(tt.stopPrice)}
			if got := o.IsStopLike(); got != tt.want {
				t.Errorf("IsStopLike() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenOrderIsOpen(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusNew, true},
		{StatusPartiallyFilled, true},
		{StatusFilled, false},
		{StatusCanceled, false},
		{StatusExpired, false},
		{StatusRejected, false},
	}
	for _, tt := range tests {
		o := OpenOrder{Status: tt.status}
		if got := o.IsOpen(); got != tt.want {
			t.Errorf("IsOpen(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOpenOrderProvidesProtection(t *testing.T) {
	tests := []struct {
		name      string
		order     OpenOrder
		closeSide Side
		want      bool
	}{
		{"reduce only same side", OpenOrder{Side: SideSell, ReduceOnly: true}, SideSell, true},
		{"stop like same side", OpenOrder{Side: SideSell, Type: OrderTypeStopMarket}, SideSell, true},
		{"plain limit same side", OpenOrder{Side: SideSell, Type: OrderTypeLimit}, SideSell, false},
		{"reduce only wrong side", OpenOrder{Side: SideBuy, ReduceOnly: true}, SideSell, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.ProvidesProtection(tt.closeSide); got != tt.want {
				t.Errorf("ProvidesProtection() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("BUY opposite should be SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SELL opposite should be BUY")
	}
}
