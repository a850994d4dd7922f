// Package config loads and validates simulation parameters from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML). Zero-value fields are
// filled from Default() before validation, so partial files stay concise.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Trading    TradingConfig    `yaml:"trading"`
	Battery    BatteryConfig    `yaml:"battery"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Regulator  RegulatorConfig  `yaml:"regulator"`
}

type SimulationConfig struct {
	NumProsumers int   `yaml:"num_prosumers"`
	Ticks        int   `yaml:"ticks"`
	Seed         int64 `yaml:"seed"`

	// Fleet distribution bounds.
	MinPVCapacityKW      float64   `yaml:"min_pv_capacity_kw"`
	MaxPVCapacityKW      float64   `yaml:"max_pv_capacity_kw"`
	MinBaseConsumption   float64   `yaml:"min_base_consumption_kwh"`
	MaxBaseConsumption   float64   `yaml:"max_base_consumption_kwh"`
	BatteryCapacitiesKWh []float64 `yaml:"battery_capacities_kwh"`
	BatteryWeights       []float64 `yaml:"battery_weights"`
}

type TradingConfig struct {
	BasePrice      float64 `yaml:"base_price"`        // currency/kWh
	MaxTradeCapKWh float64 `yaml:"max_trade_cap_kwh"` // per prosumer per tick
	LocalMarketFee float64 `yaml:"local_market_fee"`  // currency/kWh, quantity-independent

	// Community balancing: draft battery owners when demand outstrips
	// supply by more than this many kWh.
	BalanceThresholdKWh float64 `yaml:"balance_threshold_kwh"`
}

type BatteryConfig struct {
	Efficiency float64 `yaml:"efficiency"` // round-trip leg efficiency, (0,1]
	MinSOC     float64 `yaml:"min_soc"`
	MaxSOC     float64 `yaml:"max_soc"`
	InitialSOC float64 `yaml:"initial_soc"`
}

type LedgerConfig struct {
	NumMiners         int     `yaml:"num_miners"`
	Difficulty        int     `yaml:"difficulty"` // leading zero hex chars
	BlockReward       float64 `yaml:"block_reward"`
	MaxTradesPerBlock int     `yaml:"max_trades_per_block"`
	MaxAttempts       int     `yaml:"max_attempts"` // per miner per round
}

type RegulatorConfig struct {
	RenewableRate      float64 `yaml:"renewable_rate"` // currency/kWh bonus
	MarketRate         float64 `yaml:"market_rate"`    // currency/kWh penalty
	PenaltyThreshold   float64 `yaml:"penalty_threshold"`
	BonusThreshold     float64 `yaml:"bonus_threshold"`
	BalanceThreshold   float64 `yaml:"balance_threshold"`
	BanDurationMarket  int     `yaml:"ban_duration_market"`
	BanDurationBalance int     `yaml:"ban_duration_balance"`
	BanCooldown        int     `yaml:"ban_cooldown"`
}

// Default returns the reference parameter set for a 24-tick community run.
// The regulator thresholds were tuned for this run length and are not
// expected to generalize; treat them as a starting point.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			NumProsumers:         10,
			Ticks:                24,
			Seed:                 42,
			MinPVCapacityKW:      3.0,
			MaxPVCapacityKW:      10.0,
			MinBaseConsumption:   0.3,
			MaxBaseConsumption:   3.0,
			BatteryCapacitiesKWh: []float64{0, 5, 10, 15, 20},
			BatteryWeights:       []float64{0.40, 0.15, 0.25, 0.15, 0.05},
		},
		Trading: TradingConfig{
			BasePrice:           0.15,
			MaxTradeCapKWh:      3.0,
			LocalMarketFee:      0.02,
			BalanceThresholdKWh: 0.5,
		},
		Battery: BatteryConfig{
			Efficiency: 0.95,
			MinSOC:     0.10,
			MaxSOC:     0.90,
			InitialSOC: 0.50,
		},
		Ledger: LedgerConfig{
			NumMiners:         15,
			Difficulty:        3,
			BlockReward:       0.1,
			MaxTradesPerBlock: 50,
			MaxAttempts:       1_000_000,
		},
		Regulator: RegulatorConfig{
			RenewableRate:      0.02,
			MarketRate:         0.02,
			PenaltyThreshold:   2.0,
			BonusThreshold:     2.0,
			BalanceThreshold:   -20.0,
			BanDurationMarket:  2,
			BanDurationBalance: 3,
			BanCooldown:        5,
		},
	}
}

// Load reads path, overlays it on Default(), and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	s := c.Simulation
	if s.NumProsumers <= 0 {
		return errors.New("simulation.num_prosumers must be > 0")
	}
	if s.Ticks <= 0 {
		return errors.New("simulation.ticks must be > 0")
	}
	if s.MinPVCapacityKW <= 0 || s.MaxPVCapacityKW < s.MinPVCapacityKW {
		return errors.New("simulation PV capacity bounds must satisfy 0 < min <= max")
	}
	if s.MinBaseConsumption <= 0 || s.MaxBaseConsumption < s.MinBaseConsumption {
		return errors.New("simulation base consumption bounds must satisfy 0 < min <= max")
	}
	if len(s.BatteryCapacitiesKWh) == 0 || len(s.BatteryCapacitiesKWh) != len(s.BatteryWeights) {
		return errors.New("simulation battery capacities and weights must be non-empty and equal length")
	}
	for _, w := range s.BatteryWeights {
		if w < 0 {
			return errors.New("simulation.battery_weights must be non-negative")
		}
	}

	t := c.Trading
	if t.BasePrice <= 0 {
		return errors.New("trading.base_price must be > 0")
	}
	if t.MaxTradeCapKWh <= 0 {
		return errors.New("trading.max_trade_cap_kwh must be > 0")
	}
	if t.LocalMarketFee < 0 || t.LocalMarketFee >= t.BasePrice {
		return errors.New("trading.local_market_fee must be in [0, base_price)")
	}

	b := c.Battery
	if b.Efficiency <= 0 || b.Efficiency > 1 {
		return errors.New("battery.efficiency must be in (0, 1]")
	}
	if b.MinSOC < 0 || b.MaxSOC > 1 || b.MinSOC > b.MaxSOC {
		return errors.New("battery SOC bounds must satisfy 0 <= min_soc <= max_soc <= 1")
	}
	if b.InitialSOC < b.MinSOC || b.InitialSOC > b.MaxSOC {
		return errors.New("battery.initial_soc must be within [min_soc, max_soc]")
	}

	l := c.Ledger
	if l.NumMiners <= 0 {
		return errors.New("ledger.num_miners must be > 0")
	}
	if l.Difficulty < 0 {
		return errors.New("ledger.difficulty must be >= 0")
	}
	if l.MaxTradesPerBlock <= 0 {
		return errors.New("ledger.max_trades_per_block must be > 0")
	}
	if l.MaxAttempts <= 0 {
		return errors.New("ledger.max_attempts must be > 0")
	}

	r := c.Regulator
	if r.BanDurationMarket <= 0 || r.BanDurationBalance <= 0 {
		return errors.New("regulator ban durations must be > 0")
	}
	if r.BanCooldown < 0 {
		return errors.New("regulator.ban_cooldown must be >= 0")
	}
	if r.RenewableRate < 0 || r.MarketRate < 0 {
		return errors.New("regulator rates must be >= 0")
	}
	return nil
}
