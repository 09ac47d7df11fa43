package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/san-kum/calib/internal/calib"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "quadratic" {
		t.Errorf("expected model quadratic, got %s", cfg.Model)
	}
	oc, err := cfg.OptimizerConfig()
	if err != nil {
		t.Fatalf("default optimizer config invalid: %v", err)
	}
	if oc != calib.DefaultConfig() {
		t.Errorf("expected %+v, got %+v", calib.DefaultConfig(), oc)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("quadratic", "demo")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Optimizer.Tolerance != 1e-6 {
		t.Errorf("expected tolerance 1e-6, got %g", cfg.Optimizer.Tolerance)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("preset invalid: %v", err)
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("caplet", "strip")
	a.InitialGuess[0].Value = 99
	a.Market.Maturities[0] = 99

	b := GetPreset("caplet", "strip")
	if b.InitialGuess[0].Value == 99 || b.Market.Maturities[0] == 99 {
		t.Error("preset was mutated through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("quadratic", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "demo"); cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("quadratic")
	if len(presets) != 2 || presets[0] != "demo" {
		t.Errorf("expected sorted [demo escalate], got %v", presets)
	}
	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestAllPresetsValidate(t *testing.T) {
	for _, model := range ListModels() {
		for _, name := range ListPresets(model) {
			if err := GetPreset(model, name).Validate(); err != nil {
				t.Errorf("%s/%s: %v", model, name, err)
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	want := GetPreset("cap", "strip")
	want.Log.Development = true

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.Model != "cap" || len(got.InitialGuess) != 5 || len(got.Market.Maturities) != 5 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.SyntheticTruth[2] != 0.24 {
		t.Errorf("expected truth 0.24, got %g", got.SyntheticTruth[2])
	}
	if !got.Log.Development {
		t.Error("expected development logging")
	}
}

func TestLoadExplicitZeroOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	cfg := &Config{Model: "linear", Target: []float64{1}}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	// zero values were written explicitly, so they override defaults
	if got.Optimizer.Tolerance != 0 {
		t.Errorf("expected explicit zero tolerance, got %g", got.Optimizer.Tolerance)
	}
	if _, err := got.OptimizerConfig(); !errors.Is(err, calib.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no model", func(c *Config) { c.Model = "" }, ErrInvalidJob},
		{"no guess", func(c *Config) { c.InitialGuess = nil }, ErrInvalidJob},
		{"no target", func(c *Config) { c.Target = nil }, ErrInvalidJob},
		{"short target", func(c *Config) { c.Target = []float64{1} }, ErrInvalidJob},
		{"bad policy", func(c *Config) { c.Optimizer.DampingPolicy = "sometimes" }, calib.ErrInvalidConfig},
		{"bad tolerance", func(c *Config) { c.Optimizer.Tolerance = -1 }, calib.ErrInvalidConfig},
		{"maturities", func(c *Config) { c.Market.Maturities = []float64{1} }, ErrInvalidJob},
		{"discount factors", func(c *Config) {
			c.Market.Maturities = []float64{1, 2, 3}
			c.Market.DiscountFactors = []float64{0.9, 0.8}
		}, ErrInvalidJob},
		{"discount factors without maturities", func(c *Config) {
			c.Market.DiscountFactors = []float64{0.9, 0.8}
		}, ErrInvalidJob},
		{"zero tolerance", func(c *Config) { c.Optimizer.Tolerance = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset("quadratic", "demo")
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDiscountFactor(t *testing.T) {
	tests := []struct {
		name string
		dfs  []float64
		i    int
		want float64
		ok   bool
	}{
		{"none", nil, 3, 1, true},
		{"broadcast", []float64{0.9}, 3, 0.9, true},
		{"per maturity", []float64{0.9, 0.8}, 1, 0.8, true},
		{"short list", []float64{0.9, 0.8}, 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df, ok := MarketConfig{DiscountFactors: tt.dfs}.DiscountFactor(tt.i)
			if df != tt.want || ok != tt.ok {
				t.Errorf("expected (%g, %v), got (%g, %v)", tt.want, tt.ok, df, ok)
			}
		})
	}
}
