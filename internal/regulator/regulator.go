// Package regulator scores prosumer behavior — rewarding renewable
// self-consumption, penalizing market dependency — and enforces temporary
// trading bans through a small explicit state machine.
package regulator

import (
	"log/slog"

	"github.com/talgya/gridcommons/internal/config"
	"github.com/talgya/gridcommons/internal/prosumer"
)

// Ban reasons.
const (
	ReasonMarketUsage     = "excessive_market_usage"
	ReasonNegativeBalance = "negative_balance"
)

// BanRecord logs one ban decision for reporting.
type BanRecord struct {
	Prosumer prosumer.ID `json:"prosumer_id"`
	Tick     int         `json:"tick"`
	Reason   string      `json:"reason"`
}

// Regulator holds the incentive rates, ban thresholds, and the running
// totals of money moved. All thresholds come from configuration; they were
// tuned for a 24-tick run and should be re-tuned for other horizons.
type Regulator struct {
	cfg config.RegulatorConfig

	TotalIncentivesPaid     float64
	TotalPenaltiesCollected float64
	BanLog                  []BanRecord
}

// New creates a regulator with the given policy parameters.
func New(cfg config.RegulatorConfig) *Regulator {
	return &Regulator{cfg: cfg}
}

// Score applies this tick's incentives to one prosumer: a bonus per kWh of
// renewable self-consumption and a penalty per kWh cleared on the local
// market. Both fold into the prosumer's cumulative totals and balance.
// Scoring uses the tick's deltas, never the cumulative counters — re-scoring
// history every tick compounds penalties that were already paid.
func (r *Regulator) Score(p *prosumer.Prosumer) (bonus, penalty float64) {
	if p.Ban.Active() {
		return 0, 0 // banned prosumers receive neither incentives nor penalties
	}

	if p.TickRenewableKWh > 0 {
		bonus = p.TickRenewableKWh * r.cfg.RenewableRate
		p.Balance += bonus
		p.Bonus += bonus
		r.TotalIncentivesPaid += bonus
	}
	if p.TickMarketKWh > 0 {
		penalty = p.TickMarketKWh * r.cfg.MarketRate
		p.Balance -= penalty
		p.Penalties += penalty
		r.TotalPenaltiesCollected += penalty
	}
	return bonus, penalty
}

// EnforceBans evaluates the ban decision for every prosumer, once per tick,
// after scoring. Two independent triggers with independent durations:
// excessive market usage (cumulative penalties high, bonuses low) and a
// deeply negative balance; whichever is detected first applies. A prosumer
// already banned, or banned within the cooldown window, is exempt from a
// new decision.
func (r *Regulator) EnforceBans(fleet []*prosumer.Prosumer, tick int) {
	for _, p := range fleet {
		if p.Ban.Active() {
			continue
		}
		if p.Ban.LastBanTick >= 0 && tick-p.Ban.LastBanTick <= r.cfg.BanCooldown {
			continue
		}

		switch {
		case p.Penalties > r.cfg.PenaltyThreshold && p.Bonus < r.cfg.BonusThreshold:
			r.apply(p, tick, r.cfg.BanDurationMarket, ReasonMarketUsage)
		case p.Balance < r.cfg.BalanceThreshold:
			r.apply(p, tick, r.cfg.BanDurationBalance, ReasonNegativeBalance)
		}
	}
}

func (r *Regulator) apply(p *prosumer.Prosumer, tick, duration int, reason string) {
	p.Ban = prosumer.BanState{
		Status:         prosumer.Banned,
		RemainingTicks: duration,
		Reason:         reason,
		LastBanTick:    tick,
	}
	r.BanLog = append(r.BanLog, BanRecord{Prosumer: p.ID, Tick: tick, Reason: reason})
	slog.Info("prosumer banned",
		"prosumer", p.ID, "reason", reason, "duration", duration, "tick", tick)
}

// AdvanceBans decrements every active ban by one tick and lifts those that
// reach zero. It runs strictly after EnforceBans so a ban applied this tick
// is not decremented in the same tick, and the counter is touched exactly
// once per tick — never twice, never below zero.
func (r *Regulator) AdvanceBans(fleet []*prosumer.Prosumer, tick int) {
	for _, p := range fleet {
		if !p.Ban.Active() || p.Ban.LastBanTick == tick {
			continue
		}
		p.Ban.RemainingTicks--
		if p.Ban.RemainingTicks <= 0 {
			p.Ban = prosumer.BanState{
				Status:      prosumer.Unbanned,
				Reason:      "",
				LastBanTick: p.Ban.LastBanTick,
			}
			slog.Info("ban lifted", "prosumer", p.ID, "tick", tick)
		}
	}
}
