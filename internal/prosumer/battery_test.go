package prosumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatteryValidation(t *testing.T) {
	tests := []struct {
		name    string
		cap     float64
		eff     float64
		minSOC  float64
		maxSOC  float64
		initial float64
		wantErr bool
	}{
		{"valid", 10, 0.9, 0.1, 0.9, 0.5, false},
		{"zero capacity", 0, 0.9, 0.1, 0.9, 0.5, true},
		{"efficiency above one", 10, 1.5, 0.1, 0.9, 0.5, true},
		{"inverted soc bounds", 10, 0.9, 0.9, 0.1, 0.5, true},
		{"initial soc below floor", 10, 0.9, 0.2, 0.9, 0.1, true},
		{"initial soc above ceiling", 10, 0.9, 0.1, 0.8, 0.95, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBattery(tt.cap, tt.eff, tt.minSOC, tt.maxSOC, tt.initial)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBatteryChargeFillsToMaxExactly(t *testing.T) {
	b, err := NewBattery(10, 0.9, 0.1, 0.9, 0.5)
	require.NoError(t, err)

	// Headroom is 4 kWh stored; the input drawn is 4/0.9 kWh, the rest of
	// the surplus stays tradable.
	remaining, err := b.Absorb(10)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, b.SOC, 1e-9, "surplus was sufficient, SOC must land exactly on max")
	assert.InDelta(t, 10-4.0/0.9, remaining, 1e-9)
}

func TestBatteryDischargeDeliversRequestedEnergy(t *testing.T) {
	b, err := NewBattery(10, 0.9, 0.1, 0.9, 0.9)
	require.NoError(t, err)

	// A 2 kWh deficit: delivered energy must equal the request, so stored
	// drawdown is 2/0.9 kWh.
	remaining, err := b.Absorb(-2)
	require.NoError(t, err)

	assert.InDelta(t, 0, remaining, 1e-9, "deficit fully covered by storage")
	assert.InDelta(t, 0.9-(2.0/0.9)/10, b.SOC, 1e-9)
}

func TestBatteryDischargeStopsAtFloor(t *testing.T) {
	b, err := NewBattery(10, 1.0, 0.1, 0.9, 0.2)
	require.NoError(t, err)

	// Only 1 kWh above the floor; a 5 kWh deficit drains to the floor and
	// leaves the rest for the market.
	remaining, err := b.Absorb(-5)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, b.SOC, 1e-9)
	assert.InDelta(t, -4, remaining, 1e-9)
}

func TestBatterySOCBoundsHoldOverRandomWalk(t *testing.T) {
	b, err := NewBattery(15, 0.95, 0.1, 0.9, 0.5)
	require.NoError(t, err)

	flows := []float64{8, -3, 12, -20, 0.5, -0.5, 30, -30, 1.7, -2.3}
	for _, f := range flows {
		_, err := b.Absorb(f)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, b.SOC, b.MinSOC-1e-6)
		assert.LessOrEqual(t, b.SOC, b.MaxSOC+1e-6)
	}
}

func TestBatteryWithdraw(t *testing.T) {
	b, err := NewBattery(10, 1.0, 0.0, 1.0, 0.5)
	require.NoError(t, err)

	delivered, err := b.Withdraw(2)
	require.NoError(t, err)
	assert.InDelta(t, 2, delivered, 1e-9)
	assert.InDelta(t, 0.3, b.SOC, 1e-9)

	// Requests beyond the reserve deliver only what is stored.
	delivered, err = b.Withdraw(100)
	require.NoError(t, err)
	assert.InDelta(t, 3, delivered, 1e-9)
	assert.InDelta(t, 0, b.SOC, 1e-9)
}
