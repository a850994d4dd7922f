package engine

import (
	"context"
	"log/slog"
	"sort"

	"github.com/talgya/gridcommons/internal/market"
	"github.com/talgya/gridcommons/internal/prosumer"
)

// Step advances the simulation by one tick. The stages run strictly in
// order — the regulator must see the venue tags that only exist after the
// local market clears — and a started tick always runs to completion unless
// an energy-accounting invariant fails, which aborts it.
func (s *Simulation) Step(ctx context.Context, tick int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.Cfg
	forecast := s.Profiles.ForecastPrice(tick, cfg.Trading.BasePrice)

	// 1. Energy accounting: PV, consumption, battery step.
	for i, p := range s.Fleet {
		pv := s.Profiles.PVGeneration(tick, i, p.PVCapacityKW)
		cons := s.Profiles.Consumption(tick, p.BaseConsumption)
		if _, err := p.Update(pv, cons); err != nil {
			return err
		}
	}

	// 2. Offer derivation from the fresh imbalances.
	for _, p := range s.Fleet {
		p.DeriveOffer(tick, forecast, cfg.Trading.LocalMarketFee, cfg.Trading.MaxTradeCapKWh)
	}

	// 3. Community balancing: draft stored energy when demand outstrips supply.
	if err := s.balanceOffers(tick, forecast); err != nil {
		return err
	}

	// 4. P2P double auction over an immutable offer snapshot.
	offers := s.snapshotOffers()
	matched := market.Match(offers, tick)
	for _, t := range matched.Trades {
		s.Index[t.Buyer].ApplyTrade(t.Quantity, t.Price, true, true)
		s.Index[t.Seller].ApplyTrade(t.Quantity, t.Price, false, true)
	}

	// 5. Local-market fallback clears every residual in full.
	marketTrades := market.ClearLocal(matched.Residuals, forecast, cfg.Trading.LocalMarketFee, tick)
	for _, t := range marketTrades {
		if t.Buyer == prosumer.AggregatorID {
			s.Index[t.Seller].ApplyTrade(t.Quantity, t.Price, false, false)
		} else {
			s.Index[t.Buyer].ApplyTrade(t.Quantity, t.Price, true, false)
		}
	}

	// 6. Every trade of the tick goes to the ledger, then one mining round.
	trades := append(append([]market.Trade{}, matched.Trades...), marketTrades...)
	for _, t := range trades {
		s.Ledger.Submit(t)
	}
	s.Ledger.MinePending(ctx, int64(tick+1)*secondsPerTick)

	// 7. Regulator: score this tick's behavior, then the ban decision, then
	// the once-per-tick ban advance.
	for _, p := range s.Fleet {
		s.Regulator.Score(p)
	}
	s.Regulator.EnforceBans(s.Fleet, tick)
	s.Regulator.AdvanceBans(s.Fleet, tick)

	// 8. Per-tick trading state is discarded.
	for _, p := range s.Fleet {
		p.ResetTradingState()
	}

	s.LastTick = tick
	s.TickTrades = trades

	slog.Info("tick complete",
		"tick", tick,
		"forecast", forecast,
		"p2p_trades", len(matched.Trades),
		"market_trades", len(marketTrades),
		"blocks", s.Ledger.Summarize().Blocks)
	return nil
}

// balanceOffers drafts idle battery owners as sellers when community demand
// exceeds supply by more than the configured threshold. Largest reserves go
// first, until the gap closes. The request is delivered (grid-side) kWh, so
// it is sized as half the stored reserve times the conversion efficiency —
// asking for the raw half would draw down more than half the reserve.
func (s *Simulation) balanceOffers(tick int, forecast float64) error {
	var demand, supply float64
	for _, p := range s.Fleet {
		if p.Offer == nil {
			continue
		}
		switch p.Offer.Role {
		case prosumer.RoleBuyer:
			demand += p.Offer.Quantity
		case prosumer.RoleSeller:
			supply += p.Offer.Quantity
		}
	}

	gap := demand - supply
	if gap <= s.Cfg.Trading.BalanceThresholdKWh {
		return nil
	}

	var idle []*prosumer.Prosumer
	for _, p := range s.Fleet {
		if p.Offer == nil && !p.Ban.Active() && p.HasBattery() && p.Battery.StoredAboveMin() > 0 {
			idle = append(idle, p)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		si, sj := idle[i].Battery.StoredAboveMin(), idle[j].Battery.StoredAboveMin()
		if si != sj {
			return si > sj
		}
		return idle[i].ID < idle[j].ID
	})

	for _, p := range idle {
		offered := min(p.Battery.StoredAboveMin()*0.5*p.Battery.Efficiency, gap)
		if err := p.OfferFromBattery(tick, offered, forecast,
			s.Cfg.Trading.LocalMarketFee, s.Cfg.Trading.MaxTradeCapKWh); err != nil {
			return err
		}
		if p.Offer != nil {
			gap -= p.Offer.Quantity
		}
		if gap <= s.Cfg.Trading.BalanceThresholdKWh {
			break
		}
	}
	return nil
}

// snapshotOffers copies the tick's offers so the matching engine sees an
// immutable list: nothing added mid-match is visible within the tick.
func (s *Simulation) snapshotOffers() []prosumer.Offer {
	offers := make([]prosumer.Offer, 0, len(s.Fleet))
	for _, p := range s.Fleet {
		if p.Offer == nil {
			continue
		}
		o := *p.Offer
		o.Banned = p.Ban.Active()
		offers = append(offers, o)
	}
	return offers
}
