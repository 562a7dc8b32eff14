// Package simulate drives a running matchmaker over HTTP and checks the
// invariants that must hold after a burst of concurrent task traffic.
package simulate

import (
	"errors"
	"time"
)

// Config controls a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Tasks         int           // Number of tasks to create
	Workers       int           // Concurrent task flows
	Timeout       time.Duration // Per-request HTTP timeout
	CompleteShare float64       // Fraction of tasks completed, in [0,1]
	ReassignShare float64       // Fraction of tasks reassigned before completion, in [0,1]
	Settle        time.Duration // How long to wait for the leaderboard to catch up
	Seed          uint64        // Generator seed; zero picks one from the clock
	Verbose       bool
}

// DefaultConfig returns the settings used by the CLI when flags are absent.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:9080",
		Tasks:         200,
		Workers:       8,
		Timeout:       10 * time.Second,
		CompleteShare: 0.6,
		ReassignShare: 0.2,
		Settle:        10 * time.Second,
	}
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	if c.Tasks < 1 {
		errs = append(errs, errors.New("tasks must be >= 1"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be >= 1"))
	}
	if c.CompleteShare < 0 || c.CompleteShare > 1 {
		errs = append(errs, errors.New("complete share must be within [0,1]"))
	}
	if c.ReassignShare < 0 || c.ReassignShare > 1 {
		errs = append(errs, errors.New("reassign share must be within [0,1]"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	Generated   int
	Matched     int
	Unmatched   int
	Assigned    int
	Progressed  int
	Completed   int
	Reassigned  int
	Rejected    int
	Failed      int
	Violations  []string
	StartTime   time.Time
	Duration    time.Duration
	Leaderboard int
}
