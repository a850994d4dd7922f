package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
simulation:
  num_prosumers: 25
  ticks: 48
ledger:
  difficulty: 2
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, c.Simulation.NumProsumers)
	assert.Equal(t, 48, c.Simulation.Ticks)
	assert.Equal(t, 2, c.Ledger.Difficulty)

	// Untouched sections keep their defaults.
	assert.InDelta(t, 0.15, c.Trading.BasePrice, 1e-9)
	assert.Equal(t, 15, c.Ledger.NumMiners)
	assert.InDelta(t, 0.95, c.Battery.Efficiency, 1e-9)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation: [not a map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  ticks: -1\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticks")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero prosumers", func(c *Config) { c.Simulation.NumProsumers = 0 }},
		{"pv bounds inverted", func(c *Config) { c.Simulation.MaxPVCapacityKW = 1 }},
		{"weights length mismatch", func(c *Config) { c.Simulation.BatteryWeights = []float64{1} }},
		{"negative weight", func(c *Config) { c.Simulation.BatteryWeights = []float64{0.5, -0.1, 0.2, 0.2, 0.2} }},
		{"fee eats the price", func(c *Config) { c.Trading.LocalMarketFee = 0.15 }},
		{"efficiency above one", func(c *Config) { c.Battery.Efficiency = 1.2 }},
		{"initial soc below floor", func(c *Config) { c.Battery.InitialSOC = 0.05 }},
		{"no miners", func(c *Config) { c.Ledger.NumMiners = 0 }},
		{"zero ban duration", func(c *Config) { c.Regulator.BanDurationMarket = 0 }},
		{"negative rate", func(c *Config) { c.Regulator.MarketRate = -0.01 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilConfig *Config
	assert.Error(t, nilConfig.Validate())
}
