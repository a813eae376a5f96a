package strategy

import (
	"crypto_go/internal/domain"
	"crypto_go/pkg/quant"
)

// Maker is the plain quoting strategy: symmetric bid/ask around
// top-of-book when flat, a single reduce-only close when it holds a
// position.
type Maker struct{}

// NewMaker builds a plain Maker strategy.
func NewMaker() *Maker { return &Maker{} }

func (m *Maker) DeriveDesired(in Inputs) Quotes {
	return deriveBase(in)
}

// deriveBase implements the shared flat/non-flat quoting logic both
// Maker and OffsetMaker start from.
func deriveBase(in Inputs) Quotes {
	bid, ask, ok := in.Depth.TopOfBook()
	if !ok {
		return Quotes{}
	}

	if !in.Position.IsFlat() {
		closeSide := in.Position.CloseSide()
		price := ask
		if closeSide == domain.SideBuy {
			price = bid
		}
		return Quotes{Desired: []domain.DesiredOrder{{
			Side:       closeSide,
			Price:      quant.FormatPrice(price, in.Config.PriceTick),
			Amount:     in.Position.Amt.Abs(),
			ReduceOnly: true,
		}}}
	}

	if !in.EntriesOK {
		return Quotes{}
	}

	amount := in.Config.TradeAmount.Mul(in.Config.VolumeBoost)
	buyPrice := quant.RoundPriceToTick(bid.Sub(in.Config.BidOffset), in.Config.PriceTick, quant.SideBuy)
	sellPrice := quant.RoundPriceToTick(ask.Add(in.Config.AskOffset), in.Config.PriceTick, quant.SideSell)

	return Quotes{Desired: []domain.DesiredOrder{
		{Side: domain.SideBuy, Price: quant.FormatPrice(buyPrice, in.Config.PriceTick), Amount: amount},
		{Side: domain.SideSell, Price: quant.FormatPrice(sellPrice, in.Config.PriceTick), Amount: amount},
	}}
}
