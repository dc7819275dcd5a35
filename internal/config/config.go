// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PISTE_ env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PriorWeight is the pseudo-count weight of the rating prior in each fit.
	PriorWeight float64 `koanf:"prior_weight"`

	// FitTolerance stops the fit once max |delta log s| falls below it.
	FitTolerance float64 `koanf:"fit_tolerance"`

	// FitMaxIterations caps MM iterations per fit.
	FitMaxIterations int `koanf:"fit_max_iterations"`

	// TouchTarget is the winning score of a direct-elimination bout.
	TouchTarget int `koanf:"touch_target"`

	// PoolTouchTarget is the winning score of a pool bout, used by sheet checks.
	PoolTouchTarget int `koanf:"pool_touch_target"`

	// SimulationTrials is the default Monte Carlo trial count.
	SimulationTrials int `koanf:"simulation_trials"`

	// MaxSimulationTrials caps ?n= on the simulation endpoint.
	MaxSimulationTrials int `koanf:"max_simulation_trials"`

	// RatingTiers maps the leading letter of a rating label to a prior strength.
	RatingTiers map[string]float64 `koanf:"rating_tiers"`

	// UnratedStrength is the prior of unrated entrants.
	UnratedStrength float64 `koanf:"unrated_strength"`

	// DedupeSize bounds the remembered pool submission keys.
	DedupeSize int `koanf:"dedupe_size"`

	// NotifyQueueSize bounds the in-memory notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// NotifyWorkers sets the number of notification dispatch workers.
	NotifyWorkers int `koanf:"notify_workers"`

	// DatabaseURL enables the PostgreSQL ledger when set.
	DatabaseURL string `koanf:"database_url"`

	// RateLimitRPS and RateLimitBurst throttle mutating endpoints per client.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config with defaults. ctx is reserved for future sources.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		PriorWeight:         0.3,
		FitTolerance:        1e-6,
		FitMaxIterations:    200,
		TouchTarget:         15,
		PoolTouchTarget:     5,
		SimulationTrials:    10_000,
		MaxSimulationTrials: 100_000,
		RatingTiers: map[string]float64{
			"A": 32, "B": 16, "C": 8, "D": 4, "E": 2,
		},
		UnratedStrength: 1,
		DedupeSize:      10_000,
		NotifyQueueSize: 1_024,
		NotifyWorkers:   runtime.NumCPU(),
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// Validate checks the invariants the engines rely on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.PriorWeight <= 0:
		return invalid("prior_weight must be positive")
	case c.FitTolerance <= 0:
		return invalid("fit_tolerance must be positive")
	case c.FitMaxIterations <= 0:
		return invalid("fit_max_iterations must be positive")
	case c.TouchTarget <= 0 || c.PoolTouchTarget <= 0:
		return invalid("touch targets must be positive")
	case c.SimulationTrials <= 0:
		return invalid("simulation_trials must be positive")
	case c.MaxSimulationTrials < c.SimulationTrials:
		return invalid("max_simulation_trials must be at least simulation_trials")
	case c.UnratedStrength <= 0:
		return invalid("unrated_strength must be positive")
	}
	for k, v := range c.RatingTiers {
		if v <= 0 {
			return invalid("rating tier " + k + " must be positive")
		}
	}
	return nil
}
