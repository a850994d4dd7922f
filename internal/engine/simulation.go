// Package engine drives the per-tick clearing pipeline and ties the
// community's subsystems together.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/gridcommons/internal/config"
	"github.com/talgya/gridcommons/internal/ledger"
	"github.com/talgya/gridcommons/internal/market"
	"github.com/talgya/gridcommons/internal/profile"
	"github.com/talgya/gridcommons/internal/prosumer"
	"github.com/talgya/gridcommons/internal/regulator"
)

// secondsPerTick is the wall-clock span one tick models (one hour).
const secondsPerTick = 3600

// Simulation is the explicit context object owning all mutable state. Every
// component receives what it needs per call; nothing keeps hidden cross-tick
// state of its own.
type Simulation struct {
	mu sync.RWMutex

	Cfg       *config.Config
	Fleet     []*prosumer.Prosumer
	Index     map[prosumer.ID]*prosumer.Prosumer
	Ledger    *ledger.Ledger
	Regulator *regulator.Regulator
	Profiles  *profile.Generator

	LastTick   int            // most recent tick processed, -1 before the first
	TickTrades []market.Trade // all trades of the most recent tick, both venues

	// OnTick, when set, runs after each completed tick — persistence and
	// export hook, outside the tick's serial pipeline.
	OnTick func(tick int)
}

// New assembles a simulation from configuration. The fleet is spawned
// deterministically from the configured seed.
func New(cfg *config.Config) (*Simulation, error) {
	fleet, err := prosumer.NewSpawner(cfg, cfg.Simulation.Seed).SpawnFleet()
	if err != nil {
		return nil, fmt.Errorf("spawn fleet: %w", err)
	}

	index := make(map[prosumer.ID]*prosumer.Prosumer, len(fleet))
	for _, p := range fleet {
		index[p.ID] = p
	}

	return &Simulation{
		Cfg:   cfg,
		Fleet: fleet,
		Index: index,
		Ledger: ledger.New(ledger.Options{
			NumMiners:         cfg.Ledger.NumMiners,
			Difficulty:        cfg.Ledger.Difficulty,
			BlockReward:       cfg.Ledger.BlockReward,
			MaxTradesPerBlock: cfg.Ledger.MaxTradesPerBlock,
			MaxAttempts:       cfg.Ledger.MaxAttempts,
			Seed:              cfg.Simulation.Seed,
		}, 0),
		Regulator: regulator.New(cfg.Regulator),
		Profiles:  profile.NewGenerator(cfg.Simulation.Seed),
		LastTick:  -1,
	}, nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// Run executes the configured number of ticks, then drains the pending pool
// with final mining rounds so no trade is left unrecorded.
func (s *Simulation) Run(ctx context.Context) error {
	for tick := 0; tick < s.Cfg.Simulation.Ticks; tick++ {
		if err := s.Step(ctx, tick); err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		if s.OnTick != nil {
			s.OnTick(tick)
		}
	}

	// End-of-run drain: one block per round until the pool is empty. A
	// round that exhausts its attempt budget ends the drain; those trades
	// stay pending and the chain stays valid without them.
	for s.Ledger.PendingCount() > 0 {
		ts := int64(s.Cfg.Simulation.Ticks+1) * secondsPerTick
		if s.Ledger.MinePending(ctx, ts) == nil {
			slog.Warn("final drain stopped with trades pending",
				"pending", s.Ledger.PendingCount())
			break
		}
	}
	return nil
}
