package config

import (
	"os"
	"runtime"
	"strconv"

	"timecourse/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Database DatabaseConfig
}

// AnalysisConfig holds pipeline settings
type AnalysisConfig struct {
	// Permutations is the number of null-model label permutations (B).
	Permutations int
	// Seed drives every random draw; fixing it reproduces identical p-values.
	Seed int64
	// Workers bounds the permutation worker pool.
	Workers int
	// Threshold is the minimum band magnitude C for interval detection.
	Threshold float64
	// Confidence is the two-sided band level, e.g. 0.95.
	Confidence float64
	// ProgressEvery emits a progress update every N permutations; 0 disables.
	ProgressEvery int
}

// DatabaseConfig holds optional result persistence settings
type DatabaseConfig struct {
	// URL is a Postgres connection string; empty disables persistence.
	URL string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Analysis: AnalysisConfig{
			Permutations:  getEnvInt("TIMECOURSE_PERMUTATIONS", 999),
			Seed:          int64(getEnvInt("TIMECOURSE_SEED", 42)),
			Workers:       getEnvInt("TIMECOURSE_WORKERS", runtime.NumCPU()),
			Threshold:     getEnvFloat("TIMECOURSE_THRESHOLD", 0),
			Confidence:    getEnvFloat("TIMECOURSE_CONFIDENCE", 0.95),
			ProgressEvery: getEnvInt("TIMECOURSE_PROGRESS_EVERY", 100),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Permutations < 1 {
		return errors.ConfigInvalid("permutations must be >= 1")
	}
	if a.Workers < 1 {
		return errors.ConfigInvalid("workers must be >= 1")
	}
	if a.Threshold < 0 {
		return errors.ConfigInvalid("threshold must be >= 0")
	}
	if a.Confidence <= 0 || a.Confidence >= 1 {
		return errors.ConfigInvalid("confidence must be in (0, 1)")
	}
	if a.ProgressEvery < 0 {
		return errors.ConfigInvalid("progress interval must be >= 0")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
