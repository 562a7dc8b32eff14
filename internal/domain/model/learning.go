package model

import (
	"fmt"
	"maps"
)

// SkillAffinity is the learned statistic for one employee and one skill.
type SkillAffinity struct {
	Count              int       `json:"count"`
	CompletionHours    []float64 `json:"completion_times"`
	AvgCompletionHours float64   `json:"avg_completion_time"`
	// HasAvg is false when no completion durations were observed.
	HasAvg bool `json:"avg_available"`
}

// Preference levels accepted for manual overrides.
const (
	MinPreferenceLevel = 1
	MaxPreferenceLevel = 10
)

// ManualPreferences maps employee id -> skill -> strength (1..10).
type ManualPreferences map[string]map[string]int

// Validate checks every level is within range.
func (p ManualPreferences) Validate() error {
	for emp, skills := range p {
		for skill, level := range skills {
			if level < MinPreferenceLevel || level > MaxPreferenceLevel {
				return fmt.Errorf("%w: preference %s/%s=%d outside %d..%d",
					ErrInvalidInput, emp, skill, level, MinPreferenceLevel, MaxPreferenceLevel)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p ManualPreferences) Clone() ManualPreferences {
	out := make(ManualPreferences, len(p))
	for emp, skills := range p {
		out[emp] = maps.Clone(skills)
	}
	return out
}

// PerformanceRecord aggregates completed work for one employee.
type PerformanceRecord struct {
	EmployeeID          string           `json:"employee_id"`
	CompletedByPriority map[Priority]int `json:"completed_by_priority"`
	TotalCompleted      int              `json:"total_completed"`
	TotalCompletionDays float64          `json:"total_completion_days"`
	AvgCompletionDays   float64          `json:"avg_completion_days"`
	OnTime              int              `json:"on_time_count"`
	Late                int              `json:"late_count"`
	OnTimeRate          float64          `json:"on_time_completion_rate"`
}

// Clone returns a deep copy.
func (r PerformanceRecord) Clone() PerformanceRecord {
	r.CompletedByPriority = maps.Clone(r.CompletedByPriority)
	return r
}
