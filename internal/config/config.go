// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and MATCHMAKER_ env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatasetPath is the roster CSV; it is rewritten after every availability change.
	DatasetPath string `koanf:"dataset_path"`

	// PreferencesPath is an optional YAML file holding manual preferences.
	PreferencesPath string `koanf:"preferences_path"`

	// Persist disables roster write-back when false (read-only sessions).
	Persist bool `koanf:"persist"`

	// LearnMinTasks is the task history size that unlocks the preference learner.
	LearnMinTasks int `koanf:"learn_min_tasks"`

	// LearnOnce restricts automatic learning to a single pass per session.
	LearnOnce bool `koanf:"learn_once"`

	// QueueSize bounds the completion event queue feeding the leaderboard.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of leaderboard workers.
	WorkerCount int `koanf:"worker_count"`

	// IdempotencyCacheBytes bounds the cached task-creation responses.
	IdempotencyCacheBytes int64 `koanf:"idempotency_cache_bytes"`

	// IdempotencyTTLSeconds is how long an Idempotency-Key is honoured.
	IdempotencyTTLSeconds int `koanf:"idempotency_ttl_seconds"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AvailabilityFactors maps availability tiers to scoring multipliers.
	AvailabilityFactors map[string]float64 `koanf:"availability_factors"`

	// ExperienceFactors maps experience tiers to scoring multipliers.
	ExperienceFactors map[string]float64 `koanf:"experience_factors"`

	// DefaultExperienceFactor is used for unknown experience tiers.
	DefaultExperienceFactor float64 `koanf:"default_experience_factor"`

	// PreferenceBoost scales the learned affinity contribution.
	PreferenceBoost float64 `koanf:"preference_boost"`

	// ManualPreferenceBase is added to the mean manual preference level.
	ManualPreferenceBase float64 `koanf:"manual_preference_base"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		DatasetPath:           "employee_positions_dataset.csv",
		PreferencesPath:       "",
		Persist:               true,
		LearnMinTasks:         3,
		LearnOnce:             true,
		QueueSize:             1024,
		WorkerCount:           2,
		IdempotencyCacheBytes: 8 << 20,
		IdempotencyTTLSeconds: 600,
		MaxLeaderboardLimit:   100,
		AvailabilityFactors: map[string]float64{
			"Free":               1.0,
			"Partially Assigned": 0.7,
			"Fully Assigned":     0.3,
		},
		ExperienceFactors: map[string]float64{
			"Junior":    0.8,
			"Mid-Level": 0.9,
			"Senior":    1.1,
			"Expert":    1.2,
		},
		DefaultExperienceFactor: 1.0,
		PreferenceBoost:         0.1,
		ManualPreferenceBase:    0.5,
	}
}

// IdempotencyTTL returns the configured TTL as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatasetPath == "":
		return fmt.Errorf("%w: dataset_path must not be empty", ErrInvalidConfig)
	case c.LearnMinTasks < 1:
		return fmt.Errorf("%w: learn_min_tasks must be at least 1", ErrInvalidConfig)
	case c.DefaultExperienceFactor <= 0:
		return fmt.Errorf("%w: default_experience_factor must be positive", ErrInvalidConfig)
	}
	for tier, f := range c.AvailabilityFactors {
		if f <= 0 {
			return fmt.Errorf("%w: availability factor for %q must be positive", ErrInvalidConfig, tier)
		}
	}
	for tier, f := range c.ExperienceFactors {
		if f <= 0 {
			return fmt.Errorf("%w: experience factor for %q must be positive", ErrInvalidConfig, tier)
		}
	}
	return nil
}
