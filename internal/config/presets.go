package config

import (
	"sort"

	"github.com/san-kum/calib/internal/calib"
)

func job(model string, guess []float64, apply func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Model = model
	cfg.InitialGuess = calib.Values(guess...)
	if apply != nil {
		apply(cfg)
	}
	return cfg
}

var stripMarket = MarketConfig{
	Forward:         0.03,
	Strike:          0.03,
	DiscountFactors: []float64{0.97, 0.94, 0.91, 0.88, 0.85},
	PeriodLength:    1,
	Nominal:         10000,
	Maturities:      []float64{1, 2, 3, 4, 5},
}

var Presets = map[string]map[string]*Config{
	"quadratic": {
		"demo": job("quadratic", []float64{2, 2, 2}, func(c *Config) {
			c.Target = []float64{0, 2, 0}
			c.Optimizer.Tolerance = 1e-6
		}),
		"escalate": job("quadratic", []float64{2, 2, 2}, func(c *Config) {
			c.Target = []float64{0, 2, 0}
			c.Optimizer.Tolerance = 1e-6
			c.Optimizer.DampingPolicy = calib.Escalate.String()
		}),
	},
	"linear": {
		"exact": job("linear", []float64{0, 0, 0}, func(c *Config) {
			c.Target = []float64{1, 2, 3}
		}),
	},
	"caplet": {
		"strip": job("caplet", []float64{0.1, 0.1, 0.1, 0.1, 0.1}, func(c *Config) {
			c.SyntheticTruth = []float64{0.2, 0.22, 0.24, 0.23, 0.21}
			c.Market = stripMarket
		}),
		"flat": job("caplet", []float64{0.5, 0.5, 0.5, 0.5, 0.5}, func(c *Config) {
			c.SyntheticTruth = []float64{0.25, 0.25, 0.25, 0.25, 0.25}
			c.Market = stripMarket
			c.Market.DiscountFactors = []float64{0.95}
		}),
	},
	"cap": {
		"strip": job("cap", []float64{0.1, 0.1, 0.1, 0.1, 0.1}, func(c *Config) {
			c.SyntheticTruth = []float64{0.2, 0.22, 0.24, 0.23, 0.21}
			c.Market = stripMarket
		}),
	},
	"bachelier": {
		"strip": job("bachelier", []float64{0.005, 0.005, 0.005, 0.005, 0.005}, func(c *Config) {
			c.SyntheticTruth = []float64{0.008, 0.0085, 0.009, 0.0088, 0.0082}
			c.Market = stripMarket
			c.Market.Strike = 0.025
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListModels returns the models that have presets.
func ListModels() []string {
	models := make([]string, 0, len(Presets))
	for m := range Presets {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
