package coordinator

import (
	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
	"crypto_go/pkg/quant"
)

// roundPrice rounds book-favourably: BUY down, SELL up, to the
// nearest tick.
func roundPrice(price, tick decimal.Decimal, side domain.Side) decimal.Decimal {
	qside := quant.SideBuy
	if side == domain.SideSell {
		qside = quant.SideSell
	}
	return quant.RoundPriceToTick(price, tick, qside)
}

func roundQtyDown(qty, step decimal.Decimal) decimal.Decimal {
	return quant.RoundQtyDownToStep(qty, step)
}

func formatPrice(price, tick decimal.Decimal) string {
	return quant.FormatPrice(price, tick)
}

func formatQty(qty, step decimal.Decimal) string {
	return quant.FormatQty(qty, step)
}
