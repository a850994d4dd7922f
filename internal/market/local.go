package market

import (
	"github.com/talgya/gridcommons/internal/prosumer"
)

// ClearLocal settles every residual offer against the aggregator at the
// reference price adjusted by the flat, quantity-independent fee: sellers
// receive refPrice−fee, buyers pay refPrice+fee. The aggregator has
// unlimited capacity, so the full residual quantity always clears — this
// fallback cannot fail or leave a residual behind.
func ClearLocal(residuals []prosumer.Offer, refPrice, fee float64, tick int) []Trade {
	var trades []Trade
	for _, o := range residuals {
		if o.Quantity < minTradeKWh {
			continue
		}
		switch o.Role {
		case prosumer.RoleSeller:
			trades = append(trades,
				newTrade(prosumer.AggregatorID, o.Prosumer, o.Quantity, refPrice-fee, tick, len(trades), VenueMarket))
		case prosumer.RoleBuyer:
			trades = append(trades,
				newTrade(o.Prosumer, prosumer.AggregatorID, o.Quantity, refPrice+fee, tick, len(trades), VenueMarket))
		}
	}
	return trades
}
