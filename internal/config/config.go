package config

import (
	"os"
	"strconv"

	"toxstat/internal/errors"

	"github.com/joho/godotenv"
)

// AnalysisConfig holds every tunable of the dose-response engine. It is
// constructed once at startup and passed by injection; nothing mutates it at
// runtime.
type AnalysisConfig struct {
	// Significance thresholds
	Alpha       float64 // primary significance level
	StrongAlpha float64 // treatment-relatedness override threshold
	WeakAlpha   float64 // incidence warning threshold

	// Effect-size thresholds (standardized units)
	AdverseEffectSize      float64 // adverse when paired with a significant p
	TrendAdverseEffectSize float64 // adverse when paired with a significant trend
	LargeEffectSize        float64 // warning / confidence-penalty threshold

	// Dose-response shape classification
	EquivalenceBandFactor float64 // fraction of pooled SD treated as noise

	// Monte-Carlo critical-value estimation
	SimulationTrials int
	SimulationSeed   uint64

	// Enrichment concurrency
	MaxConcurrentEndpoints int64

	// ANCOVA
	OrganFreeCovariate bool
}

// Default returns the engine defaults used throughout the nonclinical
// toxicology literature for this procedure set.
func Default() *AnalysisConfig {
	return &AnalysisConfig{
		Alpha:                  0.05,
		StrongAlpha:            0.01,
		WeakAlpha:              0.10,
		AdverseEffectSize:      0.5,
		TrendAdverseEffectSize: 0.8,
		LargeEffectSize:        1.0,
		EquivalenceBandFactor:  0.5,
		SimulationTrials:       100000,
		SimulationSeed:         20170213,
		MaxConcurrentEndpoints: 8,
		OrganFreeCovariate:     false,
	}
}

// Load reads configuration from environment variables on top of defaults and
// validates it. A .env file is honored when present.
func Load() (*AnalysisConfig, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := Default()
	cfg.Alpha = getEnvFloatOrDefault("TOXSTAT_ALPHA", cfg.Alpha)
	cfg.StrongAlpha = getEnvFloatOrDefault("TOXSTAT_STRONG_ALPHA", cfg.StrongAlpha)
	cfg.WeakAlpha = getEnvFloatOrDefault("TOXSTAT_WEAK_ALPHA", cfg.WeakAlpha)
	cfg.AdverseEffectSize = getEnvFloatOrDefault("TOXSTAT_ADVERSE_EFFECT_SIZE", cfg.AdverseEffectSize)
	cfg.TrendAdverseEffectSize = getEnvFloatOrDefault("TOXSTAT_TREND_ADVERSE_EFFECT_SIZE", cfg.TrendAdverseEffectSize)
	cfg.LargeEffectSize = getEnvFloatOrDefault("TOXSTAT_LARGE_EFFECT_SIZE", cfg.LargeEffectSize)
	cfg.EquivalenceBandFactor = getEnvFloatOrDefault("TOXSTAT_EQUIVALENCE_BAND_FACTOR", cfg.EquivalenceBandFactor)
	cfg.SimulationTrials = getEnvIntOrDefault("TOXSTAT_SIMULATION_TRIALS", cfg.SimulationTrials)
	cfg.SimulationSeed = uint64(getEnvIntOrDefault("TOXSTAT_SIMULATION_SEED", int(cfg.SimulationSeed)))
	cfg.MaxConcurrentEndpoints = int64(getEnvIntOrDefault("TOXSTAT_MAX_CONCURRENT_ENDPOINTS", int(cfg.MaxConcurrentEndpoints)))
	cfg.OrganFreeCovariate = getEnvBoolOrDefault("TOXSTAT_ORGAN_FREE_COVARIATE", cfg.OrganFreeCovariate)

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func validate(cfg *AnalysisConfig) error {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return errors.ConfigInvalid("alpha must be in (0,1)")
	}
	if cfg.StrongAlpha <= 0 || cfg.StrongAlpha > cfg.Alpha {
		return errors.ConfigInvalid("strong alpha must be in (0, alpha]")
	}
	if cfg.WeakAlpha < cfg.Alpha || cfg.WeakAlpha >= 1 {
		return errors.ConfigInvalid("weak alpha must be in [alpha, 1)")
	}
	if cfg.EquivalenceBandFactor <= 0 {
		return errors.ConfigInvalid("equivalence band factor must be positive")
	}
	if cfg.SimulationTrials < 1000 {
		return errors.ConfigInvalid("simulation trials must be at least 1000")
	}
	if cfg.MaxConcurrentEndpoints < 1 {
		return errors.ConfigInvalid("max concurrent endpoints must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
