package segment

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no window", func(c *Config) { c.WindowDuration = 0 }, "WindowDuration"},
		{"point windows only", func(c *Config) { c.WindowDuration = 0; c.WindowPoints = 24 }, ""},
		{"step above one", func(c *Config) { c.StepFraction = 1.5 }, "StepFraction"},
		{"target min zero", func(c *Config) { c.TargetMin = 0 }, "TargetMin"},
		{"target max one", func(c *Config) { c.TargetMin = 1; c.TargetMax = 1 }, "TargetMax"},
		{"target min above max", func(c *Config) { c.TargetMin = 5 }, "TargetMin"},
		{"max segments below target", func(c *Config) { c.MaxSegments = 3 }, "MaxSegments"},
		{"inverted target range", func(c *Config) { c.TargetRange = Range{Low: 10, High: 3.9} }, "TargetRange"},
		{"unknown stream", func(c *Config) { c.Statistical.Stream = "median" }, "Statistical.Stream"},
		{"alpha out of range", func(c *Config) { c.Statistical.Alpha = 0 }, "Statistical.Alpha"},
		{"even kernel", func(c *Config) { c.Gradient.Kernel = 4 }, "Gradient.Kernel"},
		{"k max below k min", func(c *Config) { c.Clustering.KMax = 1 }, "Clustering.KMax"},
		{"tier bounds unsorted", func(c *Config) { c.Phase.TierBounds = [3]float64{0.6, 0.4, 0.8} }, "Phase.TierBounds"},
		{"zero bucket", func(c *Config) { c.Fusion.BucketWidth = 0 }, "Fusion.BucketWidth"},
		{"optimal below minimum", func(c *Config) { c.Thresholds.OptimalInRange = 0.4 }, "Thresholds.OptimalInRange"},
		{"all importance weights zero", func(c *Config) {
			c.Importance = ImportanceWeights{DurationSaturation: time.Hour}
		}, "Importance"},
		{"strength bands inverted", func(c *Config) { c.Transition.ModerateStrength = 0.7 }, "Transition.ModerateStrength"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q (%v)", tt.field, cfgErr.Field, err)
			}
		})
	}
}

func TestNewAnalyzerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gradient.Kernel = 2
	a, err := NewAnalyzer(cfg, nil)
	if a != nil {
		t.Error("expected no analyzer for an invalid config")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}
