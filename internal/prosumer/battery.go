package prosumer

import (
	"errors"
	"fmt"
)

// socEpsilon is the numeric tolerance for SOC bound checks (kWh-scale).
const socEpsilon = 1e-6

// Battery models household storage. SOC is a fraction of capacity and stays
// within [MinSOC, MaxSOC] by construction of the charge and discharge
// arithmetic, never by post-hoc clipping.
type Battery struct {
	CapacityKWh float64 `json:"capacity_kwh"`
	Efficiency  float64 `json:"efficiency"` // one-way conversion efficiency, (0,1]
	MinSOC      float64 `json:"min_soc"`
	MaxSOC      float64 `json:"max_soc"`
	SOC         float64 `json:"soc"`
}

// NewBattery creates a validated battery.
func NewBattery(capacityKWh, efficiency, minSOC, maxSOC, initialSOC float64) (*Battery, error) {
	b := &Battery{
		CapacityKWh: capacityKWh,
		Efficiency:  efficiency,
		MinSOC:      minSOC,
		MaxSOC:      maxSOC,
		SOC:         initialSOC,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Battery) Validate() error {
	if b.CapacityKWh <= 0 {
		return errors.New("battery capacity must be > 0")
	}
	if b.Efficiency <= 0 || b.Efficiency > 1 {
		return errors.New("battery efficiency must be in (0, 1]")
	}
	if b.MinSOC < 0 || b.MaxSOC > 1 || b.MinSOC > b.MaxSOC {
		return errors.New("battery SOC bounds must satisfy 0 <= min <= max <= 1")
	}
	if b.SOC < b.MinSOC-socEpsilon || b.SOC > b.MaxSOC+socEpsilon {
		return errors.New("battery SOC must start within [min_soc, max_soc]")
	}
	return nil
}

// StoredAboveMin returns the stored energy available above the reserve
// floor, in kWh.
func (b *Battery) StoredAboveMin() float64 {
	return (b.SOC - b.MinSOC) * b.CapacityKWh
}

// Headroom returns the stored energy that still fits below MaxSOC, in kWh.
func (b *Battery) Headroom() float64 {
	return (b.MaxSOC - b.SOC) * b.CapacityKWh
}

// Absorb applies a raw imbalance (positive = surplus, negative = deficit)
// to the battery and returns the imbalance remaining after the battery step.
//
// Charging: the input drawn from the surplus is sized so the stored energy
// (input × efficiency) tops the battery out at exactly MaxSOC whenever the
// surplus suffices. Discharging: the energy delivered to the household is
// stored_energy_used × efficiency, so the withdrawal is sized from the
// deficit divided by efficiency — the household sees exactly the requested
// energy, not the stored amount.
func (b *Battery) Absorb(raw float64) (float64, error) {
	switch {
	case raw > 0 && b.SOC < b.MaxSOC-socEpsilon/b.CapacityKWh:
		input := min(raw, b.Headroom()/b.Efficiency)
		b.SOC += input * b.Efficiency / b.CapacityKWh
		raw -= input
	case raw < 0 && b.SOC > b.MinSOC+socEpsilon/b.CapacityKWh:
		used := min(-raw/b.Efficiency, b.StoredAboveMin())
		delivered := used * b.Efficiency
		b.SOC -= used / b.CapacityKWh
		raw += delivered
	}

	if b.SOC < b.MinSOC-socEpsilon || b.SOC > b.MaxSOC+socEpsilon {
		return 0, fmt.Errorf("%w: SOC %.8f outside [%.2f, %.2f]", ErrEnergyAccounting, b.SOC, b.MinSOC, b.MaxSOC)
	}
	return raw, nil
}

// Withdraw removes stored energy for a battery-sourced sell offer and
// returns the deliverable kWh. The requested amount is grid-side energy;
// the stored drawdown is request/efficiency, capped at the reserve floor.
func (b *Battery) Withdraw(requestKWh float64) (float64, error) {
	if requestKWh <= 0 {
		return 0, nil
	}
	used := min(requestKWh/b.Efficiency, b.StoredAboveMin())
	if used <= 0 {
		return 0, nil
	}
	delivered := used * b.Efficiency
	b.SOC -= used / b.CapacityKWh
	if b.SOC < b.MinSOC-socEpsilon {
		return 0, fmt.Errorf("%w: SOC %.8f below floor %.2f after withdraw", ErrEnergyAccounting, b.SOC, b.MinSOC)
	}
	return delivered, nil
}
