// Package market clears the community's trading offers: a double-auction
// peer-to-peer pass followed by a local-market fallback that settles every
// leftover imbalance against the aggregator.
package market

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/gridcommons/internal/prosumer"
)

// Venue is the clearing channel of a trade.
type Venue string

const (
	VenueP2P    Venue = "p2p"
	VenueMarket Venue = "market"
)

// Trade is an immutable record of one executed clearing. It is the unit of
// truth submitted to the ledger.
type Trade struct {
	ID       string      `json:"id"`
	Buyer    prosumer.ID `json:"buyer_id"`
	Seller   prosumer.ID `json:"seller_id"`
	Quantity float64     `json:"quantity_kwh"`
	Price    float64     `json:"price"` // currency/kWh
	Tick     int         `json:"tick"`
	Venue    Venue       `json:"venue"`
}

// Total returns the settlement amount for the trade.
func (t Trade) Total() float64 {
	return t.Quantity * t.Price
}

// tradeNamespace scopes the deterministic trade ids.
var tradeNamespace = uuid.MustParse("3f2c7e58-1b94-4a06-b7d2-c85e90a41f6b")

// newTrade builds the immutable trade record. The id is a v5 UUID over
// (tick, venue, sequence, parties) rather than a random one: trade ids end
// up inside block hashes, so a replayed run with the same seed must produce
// the same ids or the chain stops being reproducible.
func newTrade(buyer, seller prosumer.ID, quantity, price float64, tick, seq int, venue Venue) Trade {
	name := fmt.Sprintf("%d/%s/%d/%d/%d", tick, venue, seq, buyer, seller)
	return Trade{
		ID:       uuid.NewSHA1(tradeNamespace, []byte(name)).String(),
		Buyer:    buyer,
		Seller:   seller,
		Quantity: quantity,
		Price:    price,
		Tick:     tick,
		Venue:    venue,
	}
}
