package coordinator

import (
	"github.com/shopspring/decimal"

	"crypto_go/internal/domain"
)

// checkSlippage enforces the reduce-only slippage guard:
// |price - markPrice| / markPrice <= maxCloseSlippagePct.
func checkSlippage(price, markPrice, maxSlippagePct decimal.Decimal) error {
	if markPrice.IsZero() {
		return &domain.PriceGuardFailError{Reason: "mark price unavailable"}
	}
	slippage := price.Sub(markPrice).Abs().Div(markPrice)
	if slippage.GreaterThan(maxSlippagePct) {
		return &domain.PriceGuardFailError{Reason: "slippage " + slippage.String() + " exceeds limit " + maxSlippagePct.String()}
	}
	return nil
}

// checkEntrySanity rejects non-finite, zero, or wrong-side-of-book
// entry prices before they ever reach the venue.
func checkEntrySanity(side domain.Side, price, bid, ask decimal.Decimal) error {
	if price.Sign() <= 0 {
		return &domain.PriceGuardFailError{Reason: "non-positive price"}
	}
	switch side {
	case domain.SideBuy:
		if !ask.IsZero() && price.GreaterThan(ask) {
			return &domain.PriceGuardFailError{Reason: "buy price above ask"}
		}
	case domain.SideSell:
		if !bid.IsZero() && price.LessThan(bid) {
			return &domain.PriceGuardFailError{Reason: "sell price below bid"}
		}
	}
	return nil
}
