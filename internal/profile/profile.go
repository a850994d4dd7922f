// Package profile generates the synthetic per-tick inputs the core consumes:
// PV generation, household consumption, and a price forecast. Cloud cover
// uses simplex noise so weather drifts smoothly instead of jittering tick
// to tick; everything is seeded for reproducible runs.
package profile

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Daylight window for the sinusoidal PV curve.
const (
	sunriseHour = 5
	sunsetHour  = 19
)

// consumptionPattern is the typical hourly demand factor: morning and
// evening peaks, a quiet night.
var consumptionPattern = [24]float64{
	0.5, 0.4, 0.4, 0.4, 0.5, 0.7,
	1.2, 1.5, 1.3, 1.0, 0.9, 1.0,
	1.1, 0.9, 0.8, 0.8, 0.9, 1.0,
	1.4, 1.6, 1.5, 1.3, 1.0, 0.7,
}

// priceFactors follows demand: higher during the morning and evening peaks.
var priceFactors = [24]float64{
	0.7, 0.6, 0.6, 0.6, 0.7, 0.9,
	1.3, 1.5, 1.4, 1.2, 1.1, 1.2,
	1.3, 1.1, 1.0, 1.0, 1.1, 1.2,
	1.5, 1.6, 1.5, 1.3, 1.1, 0.9,
}

// Generator produces the tick inputs for the whole community.
type Generator struct {
	rng   *rand.Rand
	cloud opensimplex.Noise
}

// NewGenerator creates a seeded input generator.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewSource(seed + 200)),
		cloud: opensimplex.NewNormalized(seed + 201),
	}
}

// PVGeneration returns one prosumer's PV output in kWh for the tick's hour:
// a sinusoid peaking at midday, scaled by capacity and a smooth cloud-cover
// factor sampled per prosumer so neighboring roofs see similar skies.
func (g *Generator) PVGeneration(tick int, prosumerIdx int, pvCapacityKW float64) float64 {
	hour := tick % 24
	if hour < sunriseHour || hour > sunsetHour {
		return 0
	}

	daylight := float64(hour - sunriseHour)
	span := float64(sunsetHour - sunriseHour)
	factor := math.Sin(math.Pi * daylight / span)

	// Cloud cover in [0.7, 1.0]: simplex noise over (time, prosumer) space.
	cover := 0.7 + 0.3*g.cloud.Eval2(float64(tick)*0.15, float64(prosumerIdx)*0.05)

	return max(0, pvCapacityKW*factor*cover)
}

// Consumption returns one prosumer's demand in kWh for the tick's hour,
// with a per-household behavioral variation of ±20%.
func (g *Generator) Consumption(tick int, baseConsumption float64) float64 {
	hour := tick % 24
	variation := 0.8 + 0.4*g.rng.Float64()
	return max(0.1, baseConsumption*consumptionPattern[hour]*variation)
}

// ForecastPrice returns the hour's price forecast in currency/kWh with a
// small forecast uncertainty of ±5%.
func (g *Generator) ForecastPrice(tick int, basePrice float64) float64 {
	hour := tick % 24
	uncertainty := 0.95 + 0.1*g.rng.Float64()
	return basePrice * priceFactors[hour] * uncertainty
}
