package market

import (
	"sort"

	"github.com/talgya/gridcommons/internal/prosumer"
)

// minTradeKWh is the smallest executable quantity; anything below it is
// treated as settled.
const minTradeKWh = 0.01

// MatchResult holds the outcome of one P2P clearing pass.
type MatchResult struct {
	Trades    []Trade
	Residuals []prosumer.Offer // remaining quantities for the local market
}

// Match runs the double auction over an immutable snapshot of the tick's
// offers. Sellers are taken in ascending ask order, buyers in descending bid
// order, ties broken by ascending prosumer id so the result is independent
// of input ordering. A pair is eligible iff bid >= ask, both sides have
// remaining quantity, and neither is banned; the executed quantity is the
// smaller remainder and the price is the bid/ask midpoint.
//
// The scan is greedy and O(buyers × sellers). That is the defined behavior,
// not an approximation: at community scale a combinatorial auction buys
// nothing but opacity.
//
// Match has no side effects; the caller applies balance and imbalance
// updates from the returned trades.
func Match(offers []prosumer.Offer, tick int) MatchResult {
	var sellers, buyers []prosumer.Offer
	for _, o := range offers {
		if o.Banned || o.Quantity < minTradeKWh {
			continue
		}
		switch o.Role {
		case prosumer.RoleSeller:
			sellers = append(sellers, o)
		case prosumer.RoleBuyer:
			buyers = append(buyers, o)
		}
	}

	sort.Slice(sellers, func(i, j int) bool {
		if sellers[i].Price != sellers[j].Price {
			return sellers[i].Price < sellers[j].Price
		}
		return sellers[i].Prosumer < sellers[j].Prosumer
	})
	sort.Slice(buyers, func(i, j int) bool {
		if buyers[i].Price != buyers[j].Price {
			return buyers[i].Price > buyers[j].Price
		}
		return buyers[i].Prosumer < buyers[j].Prosumer
	})

	var result MatchResult
	for b := range buyers {
		buyer := &buyers[b]
		for s := range sellers {
			if buyer.Quantity < minTradeKWh {
				break
			}
			seller := &sellers[s]
			if seller.Quantity < minTradeKWh {
				continue
			}
			if buyer.Price < seller.Price {
				continue
			}

			qty := min(buyer.Quantity, seller.Quantity)
			price := (buyer.Price + seller.Price) / 2
			buyer.Quantity -= qty
			seller.Quantity -= qty
			result.Trades = append(result.Trades,
				newTrade(buyer.Prosumer, seller.Prosumer, qty, price, tick, len(result.Trades), VenueP2P))
		}
	}

	for _, o := range sellers {
		if o.Quantity >= minTradeKWh {
			result.Residuals = append(result.Residuals, o)
		}
	}
	for _, o := range buyers {
		if o.Quantity >= minTradeKWh {
			result.Residuals = append(result.Residuals, o)
		}
	}
	return result
}
