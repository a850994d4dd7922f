// Fleet construction: the initial prosumer community is drawn from a seeded
// distribution so runs replay identically for a fixed seed.

package prosumer

import (
	"math/rand"

	"github.com/talgya/gridcommons/internal/config"
)

// Spawner creates prosumers for the simulation.
type Spawner struct {
	rng *rand.Rand
	cfg *config.Config
}

// NewSpawner creates a prosumer spawner with the given seed.
func NewSpawner(cfg *config.Config, seed int64) *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(seed + 100)),
		cfg: cfg,
	}
}

// SpawnFleet creates the configured number of prosumers. PV capacity and
// base consumption are drawn uniformly from their configured bounds; battery
// capacity is drawn from the configured weighted set (a zero capacity means
// no battery). Every instance is validated at construction.
func (s *Spawner) SpawnFleet() ([]*Prosumer, error) {
	sim := s.cfg.Simulation
	fleet := make([]*Prosumer, 0, sim.NumProsumers)

	for i := 0; i < sim.NumProsumers; i++ {
		pvCap := sim.MinPVCapacityKW + s.rng.Float64()*(sim.MaxPVCapacityKW-sim.MinPVCapacityKW)
		baseCons := sim.MinBaseConsumption + s.rng.Float64()*(sim.MaxBaseConsumption-sim.MinBaseConsumption)

		var battery *Battery
		if capKWh := s.pickBatteryCapacity(); capKWh > 0 {
			b := s.cfg.Battery
			var err error
			battery, err = NewBattery(capKWh, b.Efficiency, b.MinSOC, b.MaxSOC, b.InitialSOC)
			if err != nil {
				return nil, err
			}
		}

		p, err := New(ID(i), pvCap, baseCons, battery)
		if err != nil {
			return nil, err
		}
		fleet = append(fleet, p)
	}
	return fleet, nil
}

// pickBatteryCapacity draws one capacity from the weighted set.
func (s *Spawner) pickBatteryCapacity() float64 {
	sim := s.cfg.Simulation
	total := 0.0
	for _, w := range sim.BatteryWeights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	r := s.rng.Float64() * total
	for i, w := range sim.BatteryWeights {
		r -= w
		if r < 0 {
			return sim.BatteryCapacitiesKWh[i]
		}
	}
	return sim.BatteryCapacitiesKWh[len(sim.BatteryCapacitiesKWh)-1]
}
