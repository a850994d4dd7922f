package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridcommons/internal/market"
	"github.com/talgya/gridcommons/internal/prosumer"
)

// CommunityMetrics is the per-tick community aggregate. It is recomputed
// from current state on every call — never cached incrementally — so it can
// not drift from the prosumer records it summarizes.
type CommunityMetrics struct {
	Tick             int     `json:"tick"`
	TotalGeneration  float64 `json:"total_generation_kwh"`
	TotalConsumption float64 `json:"total_consumption_kwh"`
	TotalRenewable   float64 `json:"total_renewable_kwh"`
	P2PTrades        int     `json:"p2p_trades"`
	MarketTrades     int     `json:"market_trades"`
	TotalBonuses     float64 `json:"total_bonuses"`
	TotalPenalties   float64 `json:"total_penalties"`
	CommunityBalance float64 `json:"community_balance"`
	ActiveBans       int     `json:"active_bans"`
}

// Metrics recomputes the community aggregate from current prosumer state.
func (s *Simulation) Metrics() CommunityMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := CommunityMetrics{Tick: s.LastTick}
	for _, p := range s.Fleet {
		m.TotalGeneration += p.PVGeneration
		m.TotalConsumption += p.Consumption
		m.TotalRenewable += p.RenewableUsage
		m.P2PTrades += p.P2PTrades
		m.MarketTrades += p.MarketTrades
		m.TotalBonuses += p.Bonus
		m.TotalPenalties += p.Penalties
		m.CommunityBalance += p.Balance
		if p.Ban.Active() {
			m.ActiveBans++
		}
	}
	return m
}

// FleetSnapshot returns detached value copies of the fleet for observers.
// Taken under the simulation lock so a reader never sees a tick in flight.
func (s *Simulation) FleetSnapshot() []prosumer.Prosumer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]prosumer.Prosumer, len(s.Fleet))
	for i, p := range s.Fleet {
		out[i] = p.Snapshot()
	}
	return out
}

// ProsumerSnapshot returns a detached copy of one prosumer by id.
func (s *Simulation) ProsumerSnapshot(id prosumer.ID) (prosumer.Prosumer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.Index[id]
	if !ok {
		return prosumer.Prosumer{}, false
	}
	return p.Snapshot(), true
}

// LastTrades returns a copy of the most recent tick's trades.
func (s *Simulation) LastTrades() []market.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.Trade, len(s.TickTrades))
	copy(out, s.TickTrades)
	return out
}

// FinalReport renders the end-of-run summary: chain state, top miners,
// community metrics, and the best and worst prosumers by balance.
func (s *Simulation) FinalReport() string {
	m := s.Metrics()
	sum := s.Ledger.Summarize()

	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nSIMULATION COMPLETE — %d ticks\n%s\n", rule, s.Cfg.Simulation.Ticks, rule)

	fmt.Fprintf(&b, "\nLedger: %s blocks, %s trades recorded, %d pending, valid=%v\n",
		humanize.Comma(int64(sum.Blocks)), humanize.Comma(int64(sum.Trades)), sum.Pending, sum.Valid)

	miners := s.Ledger.MinerStats()
	sort.Slice(miners, func(i, j int) bool {
		if miners[i].BlocksMined != miners[j].BlocksMined {
			return miners[i].BlocksMined > miners[j].BlocksMined
		}
		return miners[i].ID < miners[j].ID
	})
	b.WriteString("\nTop miners:\n")
	for i, mn := range miners {
		if i >= 5 || mn.BlocksMined == 0 {
			break
		}
		fmt.Fprintf(&b, "  miner %2d: %d blocks, %s reward\n",
			mn.ID, mn.BlocksMined, humanize.CommafWithDigits(mn.TotalReward, 2))
	}

	fmt.Fprintf(&b, "\nCommunity: renewable %s kWh, P2P %d / market %d trades, bans active %d\n",
		humanize.CommafWithDigits(m.TotalRenewable, 1), m.P2PTrades, m.MarketTrades, m.ActiveBans)
	fmt.Fprintf(&b, "Incentives paid %s, penalties collected %s, net balance %s\n",
		humanize.CommafWithDigits(s.Regulator.TotalIncentivesPaid, 2),
		humanize.CommafWithDigits(s.Regulator.TotalPenaltiesCollected, 2),
		humanize.CommafWithDigits(m.CommunityBalance, 2))

	ranked := append([]*prosumerRank{}, s.rankProsumers()...)
	b.WriteString("\nTop prosumers by balance:\n")
	for i := 0; i < len(ranked) && i < 3; i++ {
		b.WriteString(ranked[i].line())
	}
	b.WriteString("\nBottom prosumers by balance:\n")
	for i := max(0, len(ranked)-3); i < len(ranked); i++ {
		b.WriteString(ranked[i].line())
	}

	b.WriteString(rule + "\n")
	return b.String()
}

type prosumerRank struct {
	id        int
	balance   float64
	p2p       int
	mkt       int
	renewable float64
}

func (r *prosumerRank) line() string {
	return fmt.Sprintf("  prosumer %2d: balance %8s  (p2p %d, market %d, renewable %s kWh)\n",
		r.id, humanize.CommafWithDigits(r.balance, 2), r.p2p, r.mkt,
		humanize.CommafWithDigits(r.renewable, 1))
}

func (s *Simulation) rankProsumers() []*prosumerRank {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := make([]*prosumerRank, 0, len(s.Fleet))
	for _, p := range s.Fleet {
		ranked = append(ranked, &prosumerRank{
			id:        int(p.ID),
			balance:   p.Balance,
			p2p:       p.P2PTrades,
			mkt:       p.MarketTrades,
			renewable: p.RenewableUsage,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].balance != ranked[j].balance {
			return ranked[i].balance > ranked[j].balance
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked
}
