package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPVGenerationZeroAtNight(t *testing.T) {
	g := NewGenerator(42)
	for _, hour := range []int{0, 1, 2, 3, 4, 20, 21, 22, 23} {
		assert.Zero(t, g.PVGeneration(hour, 0, 8.0), "hour %d is outside daylight", hour)
	}
}

func TestPVGenerationBounds(t *testing.T) {
	g := NewGenerator(42)
	for tick := 0; tick < 72; tick++ {
		for idx := 0; idx < 5; idx++ {
			pv := g.PVGeneration(tick, idx, 8.0)
			assert.GreaterOrEqual(t, pv, 0.0)
			assert.LessOrEqual(t, pv, 8.0, "output never exceeds capacity")
		}
	}
}

func TestPVGenerationPeaksMidday(t *testing.T) {
	g := NewGenerator(42)
	noon := g.PVGeneration(12, 0, 8.0)
	morning := g.PVGeneration(6, 0, 8.0)
	assert.Greater(t, noon, morning)
	assert.Positive(t, noon)
}

func TestPVGenerationScalesWithCapacity(t *testing.T) {
	small := NewGenerator(42).PVGeneration(12, 0, 4.0)
	large := NewGenerator(42).PVGeneration(12, 0, 8.0)
	assert.InDelta(t, 2*small, large, 1e-9, "same sky, double the roof")
}

func TestConsumptionBounds(t *testing.T) {
	g := NewGenerator(42)
	for tick := 0; tick < 48; tick++ {
		c := g.Consumption(tick, 1.5)
		assert.GreaterOrEqual(t, c, 0.1)
		// Base × peak pattern factor × max variation.
		assert.LessOrEqual(t, c, 1.5*1.6*1.2+1e-9)
	}
}

func TestForecastPriceBounds(t *testing.T) {
	g := NewGenerator(42)
	for tick := 0; tick < 48; tick++ {
		p := g.ForecastPrice(tick, 0.15)
		assert.GreaterOrEqual(t, p, 0.15*0.6*0.95-1e-9)
		assert.LessOrEqual(t, p, 0.15*1.6*1.05+1e-9)
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(7)
	b := NewGenerator(7)
	for tick := 0; tick < 24; tick++ {
		require.Equal(t, a.PVGeneration(tick, 1, 6.0), b.PVGeneration(tick, 1, 6.0))
		require.Equal(t, a.Consumption(tick, 1.2), b.Consumption(tick, 1.2))
		require.Equal(t, a.ForecastPrice(tick, 0.15), b.ForecastPrice(tick, 0.15))
	}

	other := NewGenerator(8)
	assert.NotEqual(t, NewGenerator(7).Consumption(0, 1.2), other.Consumption(0, 1.2))
}
