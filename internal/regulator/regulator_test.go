package regulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridcommons/internal/config"
	"github.com/talgya/gridcommons/internal/prosumer"
)

func testPolicy() config.RegulatorConfig {
	return config.RegulatorConfig{
		RenewableRate:      0.02,
		MarketRate:         0.02,
		PenaltyThreshold:   2.0,
		BonusThreshold:     2.0,
		BalanceThreshold:   -20,
		BanDurationMarket:  2,
		BanDurationBalance: 3,
		BanCooldown:        5,
	}
}

func newProsumer(t *testing.T, id prosumer.ID) *prosumer.Prosumer {
	t.Helper()
	p, err := prosumer.New(id, 5, 1.0, nil)
	require.NoError(t, err)
	return p
}

func TestScoreUsesTickDeltas(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.TickRenewableKWh = 3.0
	p.TickMarketKWh = 1.5

	bonus, penalty := r.Score(p)
	assert.InDelta(t, 0.06, bonus, 1e-9)
	assert.InDelta(t, 0.03, penalty, 1e-9)
	assert.InDelta(t, 0.03, p.Balance, 1e-9)
	assert.InDelta(t, 0.06, r.TotalIncentivesPaid, 1e-9)
	assert.InDelta(t, 0.03, r.TotalPenaltiesCollected, 1e-9)

	// A second scoring pass over the same deltas is additive, not compounding
	// over cumulative history: totals grow by exactly one tick's worth.
	r.Score(p)
	assert.InDelta(t, 0.12, p.Bonus, 1e-9)
	assert.InDelta(t, 0.06, p.Penalties, 1e-9)
}

func TestScoreSkipsBanned(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.TickRenewableKWh = 3.0
	p.Ban = prosumer.BanState{Status: prosumer.Banned, RemainingTicks: 1, LastBanTick: 0}

	bonus, penalty := r.Score(p)
	assert.Zero(t, bonus)
	assert.Zero(t, penalty)
	assert.Zero(t, p.Balance)
}

func TestEnforceBansMarketUsage(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 3)
	p.Penalties = 2.5
	p.Bonus = 1.0

	r.EnforceBans([]*prosumer.Prosumer{p}, 10)
	require.True(t, p.Ban.Active())
	assert.Equal(t, 2, p.Ban.RemainingTicks)
	assert.Equal(t, ReasonMarketUsage, p.Ban.Reason)
	assert.Equal(t, 10, p.Ban.LastBanTick)
	require.Len(t, r.BanLog, 1)
	assert.Equal(t, prosumer.ID(3), r.BanLog[0].Prosumer)
}

func TestEnforceBansNegativeBalance(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.Balance = -25

	r.EnforceBans([]*prosumer.Prosumer{p}, 4)
	require.True(t, p.Ban.Active())
	assert.Equal(t, 3, p.Ban.RemainingTicks)
	assert.Equal(t, ReasonNegativeBalance, p.Ban.Reason)
}

func TestEnforceBansMarketTriggerTakesPrecedence(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.Penalties = 2.5
	p.Bonus = 1.0
	p.Balance = -25

	r.EnforceBans([]*prosumer.Prosumer{p}, 0)
	assert.Equal(t, ReasonMarketUsage, p.Ban.Reason)
	assert.Equal(t, 2, p.Ban.RemainingTicks)
}

func TestEnforceBansHealthyProsumerUntouched(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.Penalties = 2.5
	p.Bonus = 3.0 // high bonus offsets the penalty trigger

	r.EnforceBans([]*prosumer.Prosumer{p}, 0)
	assert.False(t, p.Ban.Active())
	assert.Empty(t, r.BanLog)
}

func TestBanLifecycle(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.Penalties = 2.5
	p.Bonus = 1.0
	fleet := []*prosumer.Prosumer{p}

	r.EnforceBans(fleet, 10)
	require.Equal(t, 2, p.Ban.RemainingTicks)

	// Same tick: a fresh ban is not decremented.
	r.AdvanceBans(fleet, 10)
	assert.Equal(t, 2, p.Ban.RemainingTicks)

	r.AdvanceBans(fleet, 11)
	assert.True(t, p.Ban.Active())
	assert.Equal(t, 1, p.Ban.RemainingTicks)

	r.AdvanceBans(fleet, 12)
	assert.False(t, p.Ban.Active())
	assert.Equal(t, 0, p.Ban.RemainingTicks)
	assert.Empty(t, p.Ban.Reason)
	assert.Equal(t, 10, p.Ban.LastBanTick, "ban history survives the lift for cooldown checks")

	// Idle advance never drives the counter negative.
	r.AdvanceBans(fleet, 13)
	assert.Equal(t, 0, p.Ban.RemainingTicks)
}

func TestBanCooldownWindow(t *testing.T) {
	r := New(testPolicy())
	p := newProsumer(t, 0)
	p.Penalties = 2.5
	p.Bonus = 1.0
	fleet := []*prosumer.Prosumer{p}

	r.EnforceBans(fleet, 10)
	r.AdvanceBans(fleet, 10)
	r.AdvanceBans(fleet, 11)
	r.AdvanceBans(fleet, 12)
	require.False(t, p.Ban.Active())

	// Still inside the cooldown: the unchanged trigger does not re-ban.
	r.EnforceBans(fleet, 15)
	assert.False(t, p.Ban.Active())

	// One tick past the window it fires again.
	r.EnforceBans(fleet, 16)
	assert.True(t, p.Ban.Active())
	assert.Equal(t, 16, p.Ban.LastBanTick)
	assert.Len(t, r.BanLog, 2)
}
