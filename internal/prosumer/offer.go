package prosumer

// Trading offers are derived fresh each tick from the current imbalance and
// discarded at tick end. Derivation is deterministic: matching over the same
// offers must reproduce the same trades run after run.

// imbalanceThreshold is the dead band below which a prosumer stays neutral.
const imbalanceThreshold = 0.01 // kWh

// Urgency shaping. Battery-sourced offers climb slower and cap lower than PV
// offers so stored energy can underprice fresh generation and attract buyers.
const (
	pvUrgencyCoeff          = 1.0
	batteryUrgencyCoeff     = 0.5
	pvAskCeilingFactor      = 0.95
	batteryAskCeilingFactor = 0.90
)

// Offer is one side of the double auction for a single tick.
type Offer struct {
	Prosumer ID      `json:"prosumer_id"`
	Role     Role    `json:"role"`
	Quantity float64 `json:"quantity_kwh"` // remaining desired quantity, >= 0
	Price    float64 `json:"price"`        // ask for sellers, bid for buyers
	Tick     int     `json:"tick"`
	Source   Source  `json:"source"`
	Banned   bool    `json:"banned"`
}

// DeriveOffer turns the current imbalance into a priced offer. Surplus makes
// a seller anchored just above the grid sell price, deficit makes a buyer
// anchored just below the grid buy price; each moves toward the other side
// of the spread with urgency (quantity relative to the trade cap). Banned
// prosumers keep doing energy accounting but derive no offer.
func (p *Prosumer) DeriveOffer(tick int, forecastPrice, fee, tradeCap float64) {
	p.Offer = nil
	if p.Ban.Active() {
		return
	}

	gridSell := forecastPrice - fee // what the aggregator pays a seller
	gridBuy := forecastPrice + fee  // what the aggregator charges a buyer
	spread := gridBuy - gridSell

	switch {
	case p.Imbalance > imbalanceThreshold:
		qty := min(p.Imbalance, tradeCap)
		urgency := qty / tradeCap
		ask := gridSell + pvUrgencyCoeff*urgency*spread
		ask = clampPrice(ask, gridSell*1.01, gridBuy*pvAskCeilingFactor)
		p.Offer = &Offer{
			Prosumer: p.ID,
			Role:     RoleSeller,
			Quantity: qty,
			Price:    ask,
			Tick:     tick,
			Source:   SourcePV,
		}

	case p.Imbalance < -imbalanceThreshold:
		qty := min(-p.Imbalance, tradeCap)
		urgency := qty / tradeCap
		bid := gridBuy - urgency*spread
		bid = clampPrice(bid, gridSell*1.05, gridBuy*0.99)
		p.Offer = &Offer{
			Prosumer: p.ID,
			Role:     RoleBuyer,
			Quantity: qty,
			Price:    bid,
			Tick:     tick,
			Source:   SourcePV,
		}
	}
}

// OfferFromBattery drafts an otherwise neutral battery owner as a seller of
// stored energy, used by community balancing when demand outstrips supply.
// quantity is grid-side kWh; the stored drawdown happens here so the offer
// never promises energy the reserve floor forbids.
func (p *Prosumer) OfferFromBattery(tick int, quantity, forecastPrice, fee, tradeCap float64) error {
	if p.Ban.Active() || p.Battery == nil || p.Offer != nil {
		return nil
	}
	deliverable, err := p.Battery.Withdraw(min(quantity, tradeCap))
	if err != nil {
		return err
	}
	if deliverable <= imbalanceThreshold {
		return nil
	}
	p.Imbalance += deliverable

	gridSell := forecastPrice - fee
	gridBuy := forecastPrice + fee
	urgency := deliverable / tradeCap
	ask := gridSell + batteryUrgencyCoeff*urgency*(gridBuy-gridSell)
	ask = clampPrice(ask, gridSell*1.01, gridBuy*batteryAskCeilingFactor)

	p.Offer = &Offer{
		Prosumer: p.ID,
		Role:     RoleSeller,
		Quantity: deliverable,
		Price:    ask,
		Tick:     tick,
		Source:   SourceBattery,
	}
	return nil
}

func clampPrice(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
