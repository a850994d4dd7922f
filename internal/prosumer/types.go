// Package prosumer provides the per-agent energy and financial state model:
// battery accounting, trading-offer derivation, and the ban status carried
// between the trading layer and the regulator.
package prosumer

import (
	"errors"
	"fmt"
)

// ID is a unique identifier for a prosumer. The aggregator uses AggregatorID.
type ID int

// AggregatorID is the reserved counterparty id for local-market trades.
const AggregatorID ID = -1

// Role is the trading role derived from the current imbalance.
type Role uint8

const (
	RoleNone Role = iota
	RoleSeller
	RoleBuyer
)

func (r Role) String() string {
	switch r {
	case RoleSeller:
		return "seller"
	case RoleBuyer:
		return "buyer"
	default:
		return "none"
	}
}

// Source identifies where a seller offer's energy comes from.
type Source uint8

const (
	SourcePV Source = iota
	SourceBattery
)

func (s Source) String() string {
	if s == SourceBattery {
		return "battery"
	}
	return "pv"
}

// BanStatus is a ban state machine tag.
type BanStatus uint8

const (
	Unbanned BanStatus = iota
	Banned
)

// BanState is the tagged ban variant. All transitions happen in the
// regulator package; everything else only reads it.
type BanState struct {
	Status         BanStatus `json:"status"`
	RemainingTicks int       `json:"remaining_ticks"`
	Reason         string    `json:"reason,omitempty"`
	LastBanTick    int       `json:"last_ban_tick"` // -1 until first ban
}

// Active reports whether the prosumer is currently excluded from trading.
func (b BanState) Active() bool {
	return b.Status == Banned
}

// Prosumer is the core entity: a household that produces (PV), consumes,
// and optionally stores energy.
type Prosumer struct {
	ID              ID      `json:"id"`
	PVCapacityKW    float64 `json:"pv_capacity_kw"`
	BaseConsumption float64 `json:"base_consumption_kwh"`

	// Battery is nil for prosumers without storage.
	Battery *Battery `json:"battery,omitempty"`

	// Energy state for the current tick.
	PVGeneration float64 `json:"pv_generation_kwh"`
	Consumption  float64 `json:"consumption_kwh"`
	Imbalance    float64 `json:"imbalance_kwh"` // positive = surplus, negative = deficit

	// Trading state, rebuilt each tick.
	Offer *Offer `json:"offer,omitempty"`

	// Financial and behavioral totals.
	Balance        float64 `json:"balance"`
	Bonus          float64 `json:"bonus"`
	Penalties      float64 `json:"penalties"`
	RenewableUsage float64 `json:"renewable_usage_kwh"`
	P2PTrades      int     `json:"p2p_trades"`
	MarketTrades   int     `json:"market_trades"`
	MarketQuantity float64 `json:"market_quantity_kwh"`

	// Per-tick deltas consumed by the regulator, reset each tick.
	TickRenewableKWh float64 `json:"-"`
	TickMarketKWh    float64 `json:"-"`

	Ban BanState `json:"ban"`
}

// New creates a validated prosumer. Battery may be nil. Configuration
// errors are fatal at construction: a rejected instance never enters the
// simulation.
func New(id ID, pvCapacityKW, baseConsumption float64, battery *Battery) (*Prosumer, error) {
	if pvCapacityKW < 0 {
		return nil, fmt.Errorf("prosumer %d: pv capacity must be >= 0", id)
	}
	if baseConsumption <= 0 {
		return nil, fmt.Errorf("prosumer %d: base consumption must be > 0", id)
	}
	if battery != nil {
		if err := battery.Validate(); err != nil {
			return nil, fmt.Errorf("prosumer %d: %w", id, err)
		}
	}
	return &Prosumer{
		ID:              id,
		PVCapacityKW:    pvCapacityKW,
		BaseConsumption: baseConsumption,
		Battery:         battery,
		Ban:             BanState{LastBanTick: -1},
	}, nil
}

// HasBattery reports whether the prosumer owns storage.
func (p *Prosumer) HasBattery() bool {
	return p.Battery != nil
}

// Snapshot returns a detached value copy. Battery and offer are copied too,
// so the caller shares no pointers with the live instance the tick pipeline
// mutates.
func (p *Prosumer) Snapshot() Prosumer {
	c := *p
	if p.Battery != nil {
		b := *p.Battery
		c.Battery = &b
	}
	if p.Offer != nil {
		o := *p.Offer
		c.Offer = &o
	}
	return c
}

// ErrEnergyAccounting marks an internal invariant violation in the battery
// step. It aborts the tick rather than clamping: silent clamping hid a real
// accounting bug in an earlier version of this model.
var ErrEnergyAccounting = errors.New("energy accounting inconsistency")

// Update consumes one tick's PV generation and consumption, runs the battery
// step, and returns the net imbalance left for trading.
func (p *Prosumer) Update(pvGeneration, consumption float64) (float64, error) {
	if pvGeneration < 0 || consumption < 0 {
		return 0, fmt.Errorf("%w: negative input (pv=%.4f cons=%.4f)", ErrEnergyAccounting, pvGeneration, consumption)
	}
	p.PVGeneration = pvGeneration
	p.Consumption = consumption

	raw := pvGeneration - consumption
	net := raw
	if p.Battery != nil {
		var err error
		net, err = p.Battery.Absorb(raw)
		if err != nil {
			return 0, err
		}
		// The battery may reduce the magnitude of the imbalance but
		// never flip its sign.
		if raw > 0 && net < -socEpsilon || raw < 0 && net > socEpsilon {
			return 0, fmt.Errorf("%w: battery step flipped imbalance sign (raw=%.6f net=%.6f)", ErrEnergyAccounting, raw, net)
		}
	}
	p.Imbalance = net

	// Renewable self-consumption this tick: the part of consumption covered
	// directly by PV.
	renewable := min(pvGeneration, consumption)
	p.RenewableUsage += renewable
	p.TickRenewableKWh += renewable

	return net, nil
}

// ApplyTrade settles one executed trade against the prosumer's imbalance and
// balance. quantity is kWh, unitPrice is currency/kWh. The matching engines
// have no side effects; the orchestrator calls this for each party.
func (p *Prosumer) ApplyTrade(quantity, unitPrice float64, asBuyer, p2p bool) {
	cost := quantity * unitPrice
	if asBuyer {
		p.Imbalance += quantity
		p.Balance -= cost
	} else {
		p.Imbalance -= quantity
		p.Balance += cost
	}
	if p.Offer != nil {
		p.Offer.Quantity = max(0, p.Offer.Quantity-quantity)
	}
	if p2p {
		p.P2PTrades++
	} else {
		p.MarketTrades++
		p.MarketQuantity += quantity
		p.TickMarketKWh += quantity
	}
}

// ResetTradingState clears the per-tick offer and regulator deltas.
// Called at the end of every tick.
func (p *Prosumer) ResetTradingState() {
	p.Offer = nil
	p.TickRenewableKWh = 0
	p.TickMarketKWh = 0
}
